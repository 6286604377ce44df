package kernel

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"strings"

	"github.com/google/uuid"
)

func init() {
	register("sha256sum", CapCrypto, hashCmd(sha256.New))
	register("sha1sum", CapCrypto, hashCmd(sha1.New))
	register("sha512sum", CapCrypto, hashCmd(sha512.New))
	register("sha384sum", CapCrypto, hashCmd(sha512.New384))
	register("md5sum", CapCrypto, hashCmd(md5.New))
	register("uuidgen", CapCrypto, cmdUuidgen)
	register("cksum", CapCrypto, cmdCksum)
	register("openssl", CapCrypto, cmdOpenssl)
}

func hashCmd(newHash func() hash.Hash) Func {
	return func(c *Context, args []string) Result {
		var files []string
		for _, a := range args {
			if !strings.HasPrefix(a, "-") || a == "-" {
				files = append(files, a)
			}
		}
		var sb strings.Builder
		if len(files) == 0 {
			h := newHash()
			h.Write([]byte(c.Stdin))
			fmt.Fprintf(&sb, "%s  -\n", hex.EncodeToString(h.Sum(nil)))
			return ok(sb.String())
		}
		for _, f := range files {
			input, errRes := inputText(c, []string{f})
			if errRes != nil {
				return *errRes
			}
			h := newHash()
			h.Write([]byte(input))
			fmt.Fprintf(&sb, "%s  %s\n", hex.EncodeToString(h.Sum(nil)), f)
		}
		return ok(sb.String())
	}
}

func cmdUuidgen(c *Context, args []string) Result {
	for _, a := range args {
		if a == "-r" || a == "--random" {
			continue
		}
		if strings.HasPrefix(a, "-") {
			return fail(1, "uuidgen: unsupported option "+a)
		}
	}
	return ok(uuid.NewString() + "\n")
}

func cmdCksum(c *Context, args []string) Result {
	input, errRes := inputText(c, args)
	if errRes != nil {
		return *errRes
	}
	// POSIX cksum uses its own CRC; the Castagnoli table is what the host
	// runtime exposes, so the value is stable but not GNU-identical.
	sum := crc32.Checksum([]byte(input), crc32.MakeTable(crc32.Castagnoli))
	name := ""
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name = " " + args[0]
	}
	return ok(fmt.Sprintf("%d %d%s\n", sum, len(input), name))
}

// cmdOpenssl implements the digest and base64 subset:
// openssl dgst -sha256 [-hmac key], openssl rand -hex N, openssl base64 [-d].
func cmdOpenssl(c *Context, args []string) Result {
	if len(args) == 0 {
		return fail(1, "openssl: missing subcommand")
	}
	switch args[0] {
	case "dgst":
		algo := "sha256"
		hmacKey := ""
		var files []string
		for i := 1; i < len(args); i++ {
			a := args[i]
			switch {
			case strings.HasPrefix(a, "-sha") || a == "-md5":
				algo = a[1:]
			case a == "-hmac" && i+1 < len(args):
				i++
				hmacKey = args[i]
			case !strings.HasPrefix(a, "-"):
				files = append(files, a)
			}
		}
		newHash, okH := digestByName(algo)
		if !okH {
			return fail(1, "openssl: unknown digest "+algo)
		}
		input, errRes := inputText(c, files)
		if errRes != nil {
			return *errRes
		}
		var h hash.Hash
		if hmacKey != "" {
			h = hmac.New(newHash, []byte(hmacKey))
		} else {
			h = newHash()
		}
		h.Write([]byte(input))
		label := strings.ToUpper(algo)
		target := "(stdin)"
		if len(files) > 0 {
			target = files[0]
		}
		return ok(fmt.Sprintf("%s(%s)= %s\n", label, target, hex.EncodeToString(h.Sum(nil))))
	case "rand":
		hexOut := false
		n := 0
		for i := 1; i < len(args); i++ {
			if args[i] == "-hex" {
				hexOut = true
				continue
			}
			fmt.Sscanf(args[i], "%d", &n)
		}
		if n <= 0 {
			return fail(1, "openssl rand: missing byte count")
		}
		buf := make([]byte, n)
		c.rand().Read(buf)
		if hexOut {
			return ok(hex.EncodeToString(buf) + "\n")
		}
		return ok(string(buf))
	case "base64":
		decode := false
		for _, a := range args[1:] {
			if a == "-d" {
				decode = true
			}
		}
		if decode {
			data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.Stdin))
			if err != nil {
				return fail(1, "openssl: invalid base64")
			}
			return ok(string(data))
		}
		return ok(base64.StdEncoding.EncodeToString([]byte(c.Stdin)) + "\n")
	default:
		return fail(1, "openssl: unsupported subcommand "+args[0])
	}
}

func digestByName(name string) (func() hash.Hash, bool) {
	switch name {
	case "sha256":
		return sha256.New, true
	case "sha1":
		return sha1.New, true
	case "sha512":
		return sha512.New, true
	case "sha384":
		return sha512.New384, true
	case "md5":
		return md5.New, true
	}
	return nil, false
}
