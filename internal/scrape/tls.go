package scrape

import (
	"context"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"github.com/rotisserie/eris"
)

// TLS fingerprint profiles for the local fetcher.
const (
	TLSProfileGo      = "go"
	TLSProfileChrome  = "chrome"
	TLSProfileFirefox = "firefox"
	TLSProfileRandom  = "random"
)

// NewTransport returns an HTTP/1.1 transport whose TLS ClientHello mimics
// profile. "go" (or "") keeps the standard library handshake.
func NewTransport(profile string) (*http.Transport, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConnsPerHost: 2,
	}

	var id utls.ClientHelloID
	switch profile {
	case "", TLSProfileGo:
		return t, nil
	case TLSProfileChrome:
		id = utls.HelloChrome_Auto
	case TLSProfileFirefox:
		id = utls.HelloFirefox_Auto
	case TLSProfileRandom:
		id = utls.HelloRandomizedNoALPN
	default:
		return nil, eris.Errorf("scrape: unknown tls profile %q", profile)
	}

	t.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		uconn, err := helloConn(conn, host, id)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		if err := uconn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, eris.Wrap(err, "scrape: tls handshake")
		}
		return uconn, nil
	}
	return t, nil
}

// helloConn wraps conn in a uTLS client. Browser presets advertise h2,
// which this transport cannot speak, so their ALPN is pinned to http/1.1.
func helloConn(conn net.Conn, host string, id utls.ClientHelloID) (*utls.UConn, error) {
	cfg := &utls.Config{ServerName: host}
	if id == utls.HelloRandomizedNoALPN {
		return utls.UClient(conn, cfg, id), nil
	}

	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: tls preset %s", id.Client)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	uconn := utls.UClient(conn, cfg, utls.HelloCustom)
	if err := uconn.ApplyPreset(&spec); err != nil {
		return nil, eris.Wrap(err, "scrape: apply tls preset")
	}
	return uconn, nil
}
