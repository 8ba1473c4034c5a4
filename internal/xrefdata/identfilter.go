package xrefdata

import "strings"

// blacklist holds tokens that pass a naive lexer but are never useful
// identifiers to cross-reference — grounded verbatim on
// original_source/lib.py's blacklist tuple.
var blacklist = map[string]bool{
	"NULL": true, "__": true, "adapter": true, "addr": true, "arg": true,
	"attr": true, "base": true, "bp": true, "buf": true, "buffer": true,
	"c": true, "card": true, "char": true, "chip": true, "cmd": true,
	"codec": true, "const": true, "count": true, "cpu": true, "ctx": true,
	"data": true, "default": true, "define": true, "desc": true, "dev": true,
	"driver": true, "else": true, "end": true, "endif": true, "entry": true,
	"err": true, "error": true, "event": true, "extern": true, "failed": true,
	"flags": true, "h": true, "host": true, "hw": true, "i": true, "id": true,
	"idx": true, "if": true, "index": true, "info": true, "inline": true,
	"int": true, "irq": true, "j": true, "len": true, "length": true,
	"list": true, "lock": true, "long": true, "mask": true, "mode": true,
	"msg": true, "n": true, "name": true, "net": true, "next": true,
	"offset": true, "ops": true, "out": true, "p": true, "pdev": true,
	"port": true, "priv": true, "ptr": true, "q": true, "r": true,
	"rc": true, "rdev": true, "reg": true, "regs": true, "req": true,
	"res": true, "result": true, "ret": true, "return": true, "retval": true,
	"root": true, "s": true, "sb": true, "size": true, "sizeof": true,
	"sk": true, "skb": true, "spec": true, "start": true, "state": true,
	"static": true, "status": true, "struct": true, "t": true, "tmp": true,
	"tp": true, "type": true, "val": true, "value": true, "vcpu": true,
	"x": true,
}

// AcceptIdentifier implements the identifier acceptance filter of spec
// §3 GLOSSARY: "length >= 2, not on the blacklist, not starting with
// ~". Used by the Defs stage before appending a parsed definition, and
// by the Refs stage before looking a token up in Defs.
func AcceptIdentifier(s string) bool {
	if len(s) < 2 {
		return false
	}
	if strings.HasPrefix(s, "~") {
		return false
	}
	return !blacklist[s]
}
