package ingest

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// LoadTerms reads the newline delimited search term file. Lines are trimmed
// and blank lines ignored; the order in the file is the crawl order.
func LoadTerms(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open search terms file %s", path)
	}
	defer f.Close()

	var terms []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		term := strings.TrimSpace(scanner.Text())
		if term == "" {
			continue
		}
		terms = append(terms, term)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read search terms file %s", path)
	}
	return terms, nil
}
