package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// clientIP is the address used for rate limiting and the login audit trail.
// X-Forwarded-For only counts when the direct peer is a trusted proxy, and
// then the right-most hop that is not itself a trusted proxy wins. Entries
// to the left of that hop are client supplied.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := remoteHost(r.RemoteAddr)
	peerAddr, err := netip.ParseAddr(peer)
	if err != nil || !isTrustedProxy(peerAddr, trusted) {
		return peer
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			return peer
		}
		if !isTrustedProxy(addr, trusted) {
			return addr.Unmap().String()
		}
	}
	return peer
}

func isTrustedProxy(addr netip.Addr, trusted []netip.Prefix) bool {
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	mapped := mapDomainError(err)
	logHTTPOperationError(ctx, operation, mapped, err)
	writeError(w, mapped.status, mapped.message, mapped.fields)
}

func writeDecodeError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	mapped := apiError{
		status:  http.StatusBadRequest,
		code:    "BAD_REQUEST",
		message: "Invalid request body",
		fields:  []fieldError{{Message: err.Error(), Code: "BAD_REQUEST"}},
	}
	logHTTPOperationError(ctx, operation, mapped, err)
	writeError(w, mapped.status, mapped.message, mapped.fields)
}
