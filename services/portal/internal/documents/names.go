package documents

import (
	"crypto/rand"
	"fmt"
	"path"
	"strings"
	"time"
)

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// UniqueFileName builds "{epoch-ms}-{6 base36 chars}-{basename}.{ext}" from an
// uploaded file name. Names without a dot keep no extension.
func UniqueFileName(name string, now time.Time) string {
	base, ext := splitName(cleanBaseName(name))
	return fmt.Sprintf("%d-%s-%s%s", now.UnixMilli(), randomSuffix(6), base, ext)
}

func splitName(name string) (base, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

func cleanBaseName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = strings.TrimSpace(path.Base(name))
	if name == "." || name == "/" || name == "" {
		return "documento"
	}
	return name
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(buf)
}
