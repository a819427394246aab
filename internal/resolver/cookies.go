package resolver

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// seedCookies loads a Netscape-format cookie file (the format curl and
// browser exporters write) into the jar. Malformed lines are skipped.
func seedCookies(jar http.CookieJar, cookieFile string) error {
	file, err := os.Open(cookieFile)
	if err != nil {
		return fmt.Errorf("resolver: open cookie file: %w", err)
	}
	defer file.Close()

	perDomain := make(map[string][]*http.Cookie)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		httpOnly := strings.HasPrefix(line, "#HttpOnly_")
		if httpOnly {
			line = strings.TrimPrefix(line, "#HttpOnly_")
		} else if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}
		domain := strings.TrimPrefix(fields[0], ".")
		cookie := &http.Cookie{
			Name:     fields[5],
			Value:    fields[6],
			Path:     fields[2],
			Domain:   fields[0],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			HttpOnly: httpOnly,
		}
		if expiry, err := strconv.ParseInt(fields[4], 10, 64); err == nil && expiry > 0 {
			cookie.Expires = time.Unix(expiry, 0)
		}
		perDomain[domain] = append(perDomain[domain], cookie)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("resolver: read cookie file: %w", err)
	}

	for domain, cookies := range perDomain {
		u := &url.URL{Scheme: "https", Host: domain}
		jar.SetCookies(u, cookies)
	}
	return nil
}
