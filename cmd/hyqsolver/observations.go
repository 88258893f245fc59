package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kacperjurak/hyqcore/pkg/models"
)

// parseObservations reads whitespace separated "r t s" lines. Blank lines
// and lines starting with # are skipped.
func parseObservations(r io.Reader) ([]models.ObservationSpec, error) {
	var obs []models.ObservationSpec
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: want 3 columns, got %d", line, len(fields))
		}
		var vals [3]float64
		for i := range vals {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			vals[i] = v
		}
		obs = append(obs, models.ObservationSpec{R: vals[0], Time: vals[1], Drawdown: vals[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return obs, nil
}
