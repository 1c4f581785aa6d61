package fx

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
)

// CBRSource reads the Central Bank of Russia daily XML feed. It serves the
// CNY/RUB pair the cost calculator needs; other pairs are out of its range.
type CBRSource struct {
	BaseURL string
	client  *http.Client
}

// NewCBRSource creates a CBRSource. An empty baseURL selects the official
// endpoint.
func NewCBRSource(baseURL string) *CBRSource {
	if baseURL == "" {
		baseURL = "https://www.cbr.ru/scripts/XML_daily.asp"
	}
	return &CBRSource{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *CBRSource) Name() string { return "cbr" }

// valCurs mirrors the CBR daily feed layout.
type valCurs struct {
	XMLName xml.Name    `xml:"ValCurs"`
	Valutes []cbrValute `xml:"Valute"`
}

type cbrValute struct {
	ID       string `xml:"ID,attr"`
	CharCode string `xml:"CharCode"`
	Nominal  int    `xml:"Nominal"`
	Value    string `xml:"Value"`
}

// Rate fetches the daily feed and extracts the quoted currency against RUB.
// CBR quotes use comma decimal separators and per-nominal values.
func (s *CBRSource) Rate(ctx context.Context, pair string) (float64, error) {
	base, quote, ok := strings.Cut(strings.ToUpper(pair), "/")
	if !ok || quote != "RUB" {
		return 0, eris.Errorf("cbr: unsupported pair %q, only */RUB quotes available", pair)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "cbr: create request")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, eris.Wrap(err, "cbr: fetch daily feed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, eris.Errorf("cbr: status %d", resp.StatusCode)
	}

	// The feed declares windows-1251; encoding/xml needs a charset reader
	// for anything beyond UTF-8.
	dec := xml.NewDecoder(io.LimitReader(resp.Body, 1024*1024))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(charset) {
		case "windows-1251":
			return charmap.Windows1251.NewDecoder().Reader(input), nil
		default:
			return input, nil
		}
	}

	var feed valCurs
	if err := dec.Decode(&feed); err != nil {
		return 0, eris.Wrap(err, "cbr: decode feed")
	}

	for _, v := range feed.Valutes {
		if v.CharCode != base {
			continue
		}
		if v.Nominal <= 0 {
			return 0, eris.Errorf("cbr: bad nominal %d for %s", v.Nominal, base)
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(v.Value, ",", "."), 64)
		if err != nil {
			return 0, eris.Wrapf(err, "cbr: parse value %q for %s", v.Value, base)
		}
		return value / float64(v.Nominal), nil
	}

	return 0, eris.Errorf("cbr: %s missing from daily feed", base)
}
