package netfs

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/frobnitzem/go-vfs"
)

// ParseAddr splits "<host>:<port>" at the last colon.
// The port must be a decimal integer in 0..65535. Surrounding
// whitespace, brackets and an empty host are rejected.
func ParseAddr(name string) (host string, port uint16, err error) {
	i := strings.LastIndexByte(name, ':')
	if i < 0 {
		return "", 0, vfs.NewError("parse", name, vfs.ErrParse, errMissingPort)
	}
	host, ps := name[:i], name[i+1:]
	if host == "" {
		return "", 0, vfs.NewError("parse", name, vfs.ErrParse, errEmptyHost)
	}
	if strings.ContainsAny(host, " \t\r\n[]") {
		return "", 0, vfs.NewError("parse", name, vfs.ErrParse, errBadHost)
	}
	p, err := strconv.ParseUint(ps, 10, 16)
	if err != nil {
		return "", 0, vfs.NewError("parse", name, vfs.ErrParse, err)
	}
	return host, uint16(p), nil
}

// FormatAddr renders an IPv4 endpoint as "a.b.c.d:port".
func FormatAddr(ap netip.AddrPort) string {
	a := ap.Addr().Unmap().As4()
	buf := make([]byte, 0, len("255.255.255.255:65535"))
	for i, b := range a {
		if i > 0 {
			buf = append(buf, '.')
		}
		buf = strconv.AppendUint(buf, uint64(b), 10)
	}
	buf = append(buf, ':')
	buf = strconv.AppendUint(buf, uint64(ap.Port()), 10)
	return string(buf)
}
