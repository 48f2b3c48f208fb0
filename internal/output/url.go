package output

import "strconv"

// URL is the address a browser would use for a local port.
func URL(port int) string {
	if port == 443 {
		return "https://localhost"
	}
	return "http://localhost:" + strconv.Itoa(port)
}
