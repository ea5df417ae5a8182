package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockAkamai     BlockType = "akamai"
	BlockDataDome   BlockType = "datadome"
	BlockPerimeterX BlockType = "perimeterx"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// challengePageMax bounds the body size treated as an interstitial.
// Real pages often embed a captcha widget on a contact form.
const challengePageMax = 20000

// DetectBlock checks an HTTP response for signs of anti-bot protection.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	denied := resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == http.StatusServiceUnavailable ||
		resp.StatusCode == http.StatusTooManyRequests
	server := strings.ToLower(resp.Header.Get("Server"))

	if denied {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" || server == "cloudflare" {
			return true, BlockCloudflare
		}
		if strings.Contains(server, "akamaighost") {
			return true, BlockAkamai
		}
		if resp.Header.Get("x-datadome") != "" || resp.Header.Get("x-dd-b") != "" {
			return true, BlockDataDome
		}
	}

	// Vendor markers also show up in script URLs and copy on real pages,
	// so they only count on a denial or an interstitial-sized body.
	if !denied && len(body) >= challengePageMax {
		return false, BlockNone
	}
	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}
	if denied && strings.Contains(lower, "access denied") && strings.Contains(lower, "reference #") {
		return true, BlockAkamai
	}
	if strings.Contains(lower, "captcha-delivery.com") || strings.Contains(lower, "datadome") {
		return true, BlockDataDome
	}
	if strings.Contains(lower, "px-captcha") || strings.Contains(lower, "_pxhd") || strings.Contains(lower, "perimeterx") {
		return true, BlockPerimeterX
	}

	if len(body) < challengePageMax {
		if strings.Contains(lower, "captcha") {
			return true, BlockCaptcha
		}
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") && len(body) < 2000 {
			return true, BlockJSShell
		}
		if strings.Contains(lower, "enable javascript") && len(body) < 2000 {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) && len(body) < 2000 {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
