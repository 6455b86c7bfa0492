package guard

import "github.com/avct/uasurfer"

// BrowserFromUserAgent returns the browser family of a User-Agent header,
// e.g. "Chrome" or "Firefox", or "" when it cannot be identified.
func BrowserFromUserAgent(userAgent string) string {
	if userAgent == "" {
		return ""
	}
	ua := uasurfer.Parse(userAgent)
	if ua.Browser.Name == uasurfer.BrowserUnknown {
		return ""
	}
	return ua.Browser.Name.StringTrimPrefix()
}
