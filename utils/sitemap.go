package utils

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Sitemap struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	Urls    []Url    `xml:"url"`
}

type Url struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

func WriteSitemap(path, origin string, pagePaths []string, lastMod time.Time) error {
	xmlOutput, err := GenerateSitemapContent(origin, pagePaths, lastMod)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(os.WriteFile(path, []byte(xml.Header+xmlOutput), 0644))
}

// GenerateSitemapContent lists every generated page under origin. Only
// .html pages and extensionless paths are included.
func GenerateSitemapContent(origin string, pagePaths []string, lastMod time.Time) (string, error) {
	sitemap := Sitemap{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
	}

	base := strings.TrimSuffix(origin, "/")
	sorted := append([]string(nil), pagePaths...)
	sort.Strings(sorted)

	for _, p := range sorted {
		ext := filepath.Ext(p)
		if ext != "" && ext != ".html" {
			continue
		}
		loc := strings.TrimSuffix(p, "index.html")
		sitemap.Urls = append(sitemap.Urls, Url{
			Loc:     base + "/" + loc,
			LastMod: lastMod.Format("2006-01-02"),
		})
	}

	xmlOutput, err := xml.MarshalIndent(sitemap, "", "  ")
	if err != nil {
		return "", errors.WithStack(err)
	}

	return string(xmlOutput), nil
}
