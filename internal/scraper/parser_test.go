package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailsPage = `<html><body>
<table id="details">
  <tr><td>Case Type :</td><td>WP(C)</td><td>Filing Date:</td><td>05-01-2024</td></tr>
  <tr><td>Registration Number</td><td>1234/2024</td></tr>
  <tr><td>Next Hearing Date</td><td>15th March 2024</td></tr>
  <tr><td>Court Number and Judge</td><td>2 - Hon'ble Justice A. Sharma</td></tr>
  <tr><td>Case Status</td><td>  PENDING </td></tr>
  <tr><td>Remarks</td><td>-</td></tr>
</table>
<dl><dt>Category</dt><dd>Service Matter</dd></dl>
<p><label>Petitioner:</label> Ram Kumar and Another</p>
</body></html>`

func TestLabelFields(t *testing.T) {
	doc, err := NewDocument([]byte(detailsPage))
	require.NoError(t, err)

	fields := LabelFields(doc.Selection)

	assert.Equal(t, "WP(C)", fields.Find([]string{"case type"}))
	assert.Equal(t, "05-01-2024", fields.Find([]string{"filing"}))
	assert.Equal(t, "PENDING", fields.Find([]string{"status"}))
	assert.Equal(t, "Service Matter", fields.Find([]string{"category"}))
	assert.Equal(t, "Ram Kumar and Another", fields.Find([]string{"petitioner"}))
	assert.Equal(t, "2 - Hon'ble Justice A. Sharma", fields.Find([]string{"judge"}))
	assert.Equal(t, "", fields.Find([]string{"remarks"}), "placeholder values are dropped")
	assert.Equal(t, "", fields.Find([]string{"hearing"}, "next"))

	m := fields.ToMap()
	assert.Equal(t, "1234/2024", m["registration number"])
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"15-03-2024",
		"15/03/2024",
		"15.03.2024",
		"2024-03-15",
		"15 Mar 2024",
		"15th March 2024",
		"Friday, 15 March 2024",
		"March 15, 2024",
		"Next date: 15-03-2024 (tentative)",
	} {
		t.Run(in, func(t *testing.T) {
			got, ok := ParseDate(in)
			require.True(t, ok)
			assert.Equal(t, want, got)
		})
	}

	_, ok := ParseDate("not a date")
	assert.False(t, ok)
	_, ok = ParseDate("15-03-1800")
	assert.False(t, ok)
	_, ok = ParseDate("--")
	assert.False(t, ok)
}

func TestFindDate(t *testing.T) {
	d, ok := FindDate("Order dated 02/01/2023 uploaded")
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), d)
}

func TestParseCaseRef(t *testing.T) {
	tests := []struct {
		in     string
		typ    string
		number string
		year   int
		ok     bool
	}{
		{"WP(C)/1234/2024", "WP(C)", "1234", 2024, true},
		{"W.P.(C) 1234/2024", "W.P.(C)", "1234", 2024, true},
		{"cs 100/2023", "CS", "100", 2023, true},
		{"CRL.A.-55-2021", "CRL.A.", "55", 2021, true},
		{"garbage", "", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typ, number, year, ok := ParseCaseRef(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.typ, typ)
			assert.Equal(t, tt.number, number)
			assert.Equal(t, tt.year, year)
		})
	}
}

func TestSplitParties(t *testing.T) {
	assert.Equal(t, []string{"Ram Kumar", "Shyam Lal"},
		SplitParties("1) Ram Kumar Advocate - S. Gupta 2) Shyam Lal"))
	assert.Equal(t, []string{"State of Delhi", "Others"},
		SplitParties("State of Delhi & Others"))
	assert.Equal(t, "ABC Ltd", JoinParties("ABC Ltd etc."))
	assert.Empty(t, SplitParties(""))
}

func TestParseSize(t *testing.T) {
	assert.Equal(t, int64(2048), ParseSize("(2 KB)"))
	assert.Equal(t, int64(1572864), ParseSize("1.5 MB"))
	assert.Equal(t, int64(0), ParseSize("unknown"))
}

func TestPageSignals(t *testing.T) {
	assert.True(t, IsNotFoundText("Sorry, No Record Found for this query"))
	assert.False(t, IsNotFoundText("Case Status: Pending"))
	assert.True(t, IsCaptchaRejected("Invalid Captcha, please try again"))

	doc, err := NewDocument([]byte(`<div class="alert-danger"> Server busy </div>`))
	require.NoError(t, err)
	assert.Equal(t, "Server busy", ErrorMessage(doc))
}
