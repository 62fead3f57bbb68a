// Package captcha detects simple image captchas in portal pages and solves
// them with local OCR.
package captcha

import (
	"bytes"
	"encoding/base64"
	"net/url"
	"strings"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/scraper"
	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

// Challenge is a captcha found on a page. It is only valid for the session
// (cookie jar) that received the page and is never persisted.
type Challenge struct {
	ID           string
	Image        []byte
	ImageURL     string
	Token        string
	InputField   string
	FormAction   string
	HiddenFields url.Values
	DetectedAt   time.Time
}

var imageMarkers = []string{"captcha", "securimage", "security code", "security_code", "securitycode", "verification"}

var inputMarkers = []string{"captcha", "security_code", "securitycode", "secure_code", "verification_code", "fcaptcha"}

var tokenMarkers = []string{"token", "csrf", "app_token"}

// Detect looks for a captcha image and its answer field. It returns nil when
// the page has no captcha or cannot be parsed.
func Detect(page []byte) (ch *Challenge) {
	defer func() {
		if recover() != nil {
			ch = nil
		}
	}()

	if len(page) == 0 {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	var img *goquery.Selection
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if hasMarker(s, imageMarkers, "id", "class", "alt", "src", "title") {
			img = s
			return false
		}
		return true
	})
	if img == nil {
		return nil
	}

	ch = &Challenge{
		ID:           uuid.NewString(),
		HiddenFields: url.Values{},
		DetectedAt:   time.Now(),
	}

	src, _ := img.Attr("src")
	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, "data:") {
		ch.Image = decodeDataURI(src)
	} else {
		ch.ImageURL = src
	}

	var input *goquery.Selection
	doc.Find("input").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t, _ := s.Attr("type"); strings.EqualFold(t, "hidden") {
			return true
		}
		if hasMarker(s, inputMarkers, "name", "id") {
			input = s
			return false
		}
		return true
	})

	form := img.Closest("form")
	if input != nil {
		if name, ok := input.Attr("name"); ok && name != "" {
			ch.InputField = name
		} else {
			ch.InputField, _ = input.Attr("id")
		}
		if f := input.Closest("form"); f.Length() > 0 {
			form = f
		}
	}
	if ch.InputField == "" {
		ch.InputField = "captcha"
	}
	if form.Length() == 0 {
		form = doc.Find("form").First()
	}

	ch.FormAction, _ = form.Attr("action")
	form.Find("input[type=hidden], input[type=HIDDEN]").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := s.Attr("value")
		ch.HiddenFields.Set(name, value)
		if ch.Token == "" && containsAny(strings.ToLower(name), tokenMarkers) {
			ch.Token = value
		}
	})

	return ch
}

// Resolve makes the image URL and form action absolute against the page URL.
func (c *Challenge) Resolve(base string) {
	if c.ImageURL != "" {
		c.ImageURL = scraper.ResolveURL(base, c.ImageURL)
	}
	if c.FormAction != "" {
		c.FormAction = scraper.ResolveURL(base, c.FormAction)
	}
}

// Form returns the hidden fields plus the answer, ready to submit.
func (c *Challenge) Form(answer string) url.Values {
	form := url.Values{}
	for k, vs := range c.HiddenFields {
		form[k] = append([]string(nil), vs...)
	}
	form.Set(c.InputField, answer)
	return form
}

func hasMarker(s *goquery.Selection, markers []string, attrs ...string) bool {
	for _, attr := range attrs {
		if v, ok := s.Attr(attr); ok {
			v = strings.ToLower(v)
			if attr == "src" && strings.HasPrefix(v, "data:") {
				continue
			}
			if containsAny(v, markers) {
				return true
			}
		}
	}
	return false
}

func decodeDataURI(src string) []byte {
	idx := strings.Index(src, ",")
	if idx < 0 {
		return nil
	}
	meta, payload := src[:idx], src[idx+1:]
	if !strings.Contains(meta, ";base64") {
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			return nil
		}
		return []byte(decoded)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil
	}
	return data
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
