package language

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

var errNoData = errors.New("missing \\data\\ section")

// LoadARPA reads a language model in ARPA format.
// Log probabilities in ARPA files are base-10; they are converted to natural log.
func LoadARPA(r io.Reader) (*NGramModel, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	found := false
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "\\data\\" {
			found = true
			break
		}
	}
	if !found {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, errNoData
	}

	// ngram counts
	counts := make(map[int]int)
	maxOrder := 0
	var line string
	for scanner.Scan() {
		line = strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "ngram ") {
			break
		}
		parts := strings.SplitN(line[6:], "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed count line %q", line)
		}
		order, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || order < 1 {
			return nil, fmt.Errorf("malformed count line %q", line)
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("malformed count line %q", line)
		}
		counts[order] = n
		if order > maxOrder {
			maxOrder = order
		}
	}
	if maxOrder == 0 {
		return nil, errors.New("no ngram counts")
	}
	model := NewNGramModel(maxOrder)

	// n-gram sections; line holds the first line after the counts
	ended := false
	for {
		if line == "\\end\\" {
			ended = true
			break
		}
		if strings.HasPrefix(line, "\\") && strings.HasSuffix(line, "-grams:") {
			order, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(line, "\\"), "-grams:"))
			if err != nil || order < 1 || order > maxOrder {
				return nil, fmt.Errorf("unexpected section %q", line)
			}
			line = ""
			for scanner.Scan() {
				entry := strings.TrimSpace(scanner.Text())
				if entry == "" {
					continue
				}
				if strings.HasPrefix(entry, "\\") {
					line = entry
					break
				}
				if err := parseNGramLine(model, order, entry); err != nil {
					return nil, fmt.Errorf("parse n-gram line %q: %w", entry, err)
				}
			}
			if line == "" {
				break
			}
			continue
		}
		if !scanner.Scan() {
			break
		}
		line = strings.TrimSpace(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !ended {
		return nil, errors.New("missing \\end\\ marker")
	}
	for order, n := range counts {
		if got := len(model.Grams[order-1]); got != n {
			return nil, fmt.Errorf("%d-grams: header says %d, read %d", order, n, got)
		}
	}
	if len(model.Unigrams()) == 0 {
		return nil, errors.New("empty unigram section")
	}
	return model, nil
}

func parseNGramLine(model *NGramModel, order int, line string) error {
	fields := strings.Fields(line)
	if len(fields) < order+1 {
		return fmt.Errorf("too few fields for %d-gram: %q", order, line)
	}

	logProb, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return fmt.Errorf("parse log prob: %w", err)
	}
	// Convert base-10 to natural log
	logProb *= math.Ln10

	var logBackoff float64
	if len(fields) > order+1 {
		bo, err := strconv.ParseFloat(fields[order+1], 64)
		if err != nil {
			return fmt.Errorf("parse backoff: %w", err)
		}
		logBackoff = bo * math.Ln10
	}

	model.Set(fields[1:order+1], Entry{LogProb: logProb, LogBackoff: logBackoff})
	return nil
}

// WriteARPA writes the model in ARPA format (log10 probabilities) to w.
// N-grams are written in lexical order.
func (m *NGramModel) WriteARPA(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "\\data\\")
	for k, g := range m.Grams {
		fmt.Fprintf(bw, "ngram %d=%d\n", k+1, len(g))
	}
	fmt.Fprintln(bw)

	for k, g := range m.Grams {
		keys := make([]string, 0, len(g))
		for key := range g {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(bw, "\\%d-grams:\n", k+1)
		for _, key := range keys {
			e := g[key]
			if e.LogBackoff != 0 && k+1 < m.Order {
				fmt.Fprintf(bw, "%.6f\t%s\t%.6f\n", e.LogProb/math.Ln10, key, e.LogBackoff/math.Ln10)
			} else {
				fmt.Fprintf(bw, "%.6f\t%s\n", e.LogProb/math.Ln10, key)
			}
		}
		fmt.Fprintln(bw)
	}
	fmt.Fprintln(bw, "\\end\\")
	return bw.Flush()
}
