package captcha

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hcForm = `<html><body>
<form name="caseStatusForm" action="cases_qry/index_qry.php?action_code=showRecords" method="post">
  <input type="hidden" name="court_code" value="1">
  <input type="hidden" name="state_code" value="26">
  <input type="hidden" name="app_token" value="tok-123">
  <select name="case_type"><option value="1">WP(C)</option></select>
  <input type="text" name="case_no">
  <img id="captcha_image" src="securimage/securimage_show.php?135" alt="CAPTCHA Image">
  <input type="text" name="captcha" id="captcha">
</form>
</body></html>`

func TestDetectHighCourtForm(t *testing.T) {
	ch := Detect([]byte(hcForm))
	require.NotNil(t, ch)

	assert.NotEmpty(t, ch.ID)
	assert.Equal(t, "securimage/securimage_show.php?135", ch.ImageURL)
	assert.Equal(t, "captcha", ch.InputField)
	assert.Equal(t, "tok-123", ch.Token)
	assert.Equal(t, "26", ch.HiddenFields.Get("state_code"))
	assert.False(t, ch.DetectedAt.IsZero())

	ch.Resolve("https://hcservices.ecourts.gov.in/hcservices/main.php")
	assert.Equal(t, "https://hcservices.ecourts.gov.in/hcservices/securimage/securimage_show.php?135", ch.ImageURL)
	assert.Equal(t, "https://hcservices.ecourts.gov.in/hcservices/cases_qry/index_qry.php?action_code=showRecords", ch.FormAction)

	form := ch.Form("AB12")
	assert.Equal(t, "AB12", form.Get("captcha"))
	assert.Equal(t, "1", form.Get("court_code"))
	assert.Empty(t, ch.HiddenFields.Get("captcha"), "answer must not leak into the challenge")
}

func TestDetectInlineImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("GIF89a"))
	page := `<form><img class="captcha-img" src="data:image/gif;base64,` + payload + `">
		<input name="fcaptcha_code"></form>`

	ch := Detect([]byte(page))
	require.NotNil(t, ch)
	assert.Equal(t, []byte("GIF89a"), ch.Image)
	assert.Empty(t, ch.ImageURL)
	assert.Equal(t, "fcaptcha_code", ch.InputField)
}

func TestDetectNoCaptcha(t *testing.T) {
	for name, page := range map[string]string{
		"empty":     "",
		"plain":     `<html><body><table><tr><td>Case Status</td><td>Pending</td></tr></table></body></html>`,
		"malformed": "<<<<img src=\"\x00\"",
		"mention":   `<p>Enter the captcha shown below</p>`,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, Detect([]byte(page)))
		})
	}
}

func TestDetectDefaultsInputField(t *testing.T) {
	ch := Detect([]byte(`<img src="/captcha.php">`))
	require.NotNil(t, ch)
	assert.Equal(t, "captcha", ch.InputField)
	assert.Empty(t, ch.FormAction)
}
