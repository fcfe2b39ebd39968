// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, and it is the single place that decides which client
IP address and device fingerprint a request is attributed to. Forwarding
headers count only behind a trusted proxy.
*/
package request

import (
	"encoding/json"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/apperr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/constants"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/ctxutil"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/sec"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/validate"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/device"
)

// maxBodyBytes caps JSON request bodies. Credential payloads are tiny.
const maxBodyBytes = 64 << 10

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - request: *http.Request
  - target: any (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, request.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

// # Client Attribution

/*
ProxyResolver attributes a request to a client address.

Description: Forwarding headers are honoured only when the direct peer sits
inside a trusted proxy prefix. X-Real-IP wins over the first X-Forwarded-For
hop, and values that are not IP addresses are ignored. With no trusted
prefixes every request is attributed to its peer.
*/
type ProxyResolver struct {
	trusted []netip.Prefix
}

// NewProxyResolver returns a [ProxyResolver] trusting the given prefixes.
func NewProxyResolver(trusted []netip.Prefix) *ProxyResolver {
	return &ProxyResolver{trusted: trusted}
}

// Resolve returns the client address for the request.
func (resolver *ProxyResolver) Resolve(request *http.Request) string {
	peer := remoteHost(request)
	if !resolver.isTrusted(peer) {
		return peer
	}

	if realIP, ok := parseIP(request.Header.Get(constants.HeaderXRealIP)); ok {
		return realIP
	}

	if forwarded := request.Header.Get(constants.HeaderXForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if hop, ok := parseIP(first); ok {
			return hop
		}
	}
	return peer
}

func (resolver *ProxyResolver) isTrusted(peer string) bool {
	address, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	address = address.Unmap()
	for _, prefix := range resolver.trusted {
		if prefix.Contains(address) {
			return true
		}
	}
	return false
}

/*
ClientIP returns the address the request is attributed to.

It is the value stored by the client attribution middleware, or the
connection's remote host when the middleware did not run.
*/
func ClientIP(request *http.Request) string {
	if ip := ctxutil.GetClientIP(request.Context()); ip != "" {
		return ip
	}
	return remoteHost(request)
}

// remoteHost strips the port from RemoteAddr.
func remoteHost(request *http.Request) string {
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return request.RemoteAddr
	}
	return host
}

func parseIP(value string) (string, bool) {
	address, err := netip.ParseAddr(strings.TrimSpace(value))
	if err != nil {
		return "", false
	}
	return address.Unmap().String(), true
}

// UserAgent returns the raw User-Agent header.
func UserAgent(request *http.Request) string {
	return request.Header.Get("User-Agent")
}

// DeviceFingerprint classifies the requesting device from its User-Agent.
func DeviceFingerprint(request *http.Request) device.Fingerprint {
	return device.Parse(UserAgent(request))
}

// # Identity

/*
RequiredClaims ensures the request is authenticated and returns the account claims.

Returns:
  - *sec.AuthClaims: The authenticated account claims
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredClaims(request *http.Request) (*sec.AuthClaims, error) {
	claims := ctxutil.GetAuthAccount(request.Context())
	if claims == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}
	return claims, nil
}
