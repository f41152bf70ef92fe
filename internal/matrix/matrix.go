package matrix

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	dataSectionMarker = "## Data Entries"
	headerPrefix      = "chain_origin"
	fieldCount        = 8
)

// ErrNoValidEntries indicates the matrix file was readable but contained no
// usable rows after the data-section marker.
var ErrNoValidEntries = errors.New("no valid entries found in matrix file")

// RouteRecord is one origin→destination, token, DEX-pair, bridge combination
// from the route matrix. Records are created once at load time and never
// mutated.
type RouteRecord struct {
	ChainOrigin    uint64
	ChainDest      uint64
	NativeToken    string
	DexOrigin      string
	DexDest        string
	BridgeProtocol string
	LiquidityScore float64
	FeeTier        float64
}

// Load parses the route matrix file. Everything before the data-section marker
// is ignored; blank lines, comment lines and repeated header lines after it
// are skipped. Rows with a field count other than 8 are dropped without
// comment. Within an accepted row each numeric field parses independently: a
// bad field is replaced with its zero default and logged, but the row is kept.
// The load fails only when the file is unreadable or yields zero rows.
func Load(path string, logger zerolog.Logger) ([]RouteRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open matrix file: %w", err)
	}
	defer file.Close()

	log := logger.With().Str("component", "matrix_loader").Str("path", path).Logger()

	var records []RouteRecord
	inDataSection := false

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.Contains(line, dataSectionMarker) {
			inDataSection = true
			continue
		}
		if !inDataSection {
			continue
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, headerPrefix) {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) != fieldCount {
			continue
		}

		records = append(records, parseRow(fields, log))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read matrix file: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrNoValidEntries
	}

	return records, nil
}

func parseRow(fields []string, log zerolog.Logger) RouteRecord {
	return RouteRecord{
		ChainOrigin:    parseUint(fields[0], "chain_origin", log),
		ChainDest:      parseUint(fields[1], "chain_dest", log),
		NativeToken:    strings.TrimSpace(fields[2]),
		DexOrigin:      strings.TrimSpace(fields[3]),
		DexDest:        strings.TrimSpace(fields[4]),
		BridgeProtocol: strings.TrimSpace(fields[5]),
		LiquidityScore: parseFloat(fields[6], "liquidity_score", log),
		FeeTier:        parseFloat(fields[7], "fee_tier", log),
	}
}

func parseUint(raw, field string, log zerolog.Logger) uint64 {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		log.Warn().Str("field", field).Str("value", raw).Msg("invalid numeric field, defaulting to 0")
		return 0
	}
	return value
}

func parseFloat(raw, field string, log zerolog.Logger) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		log.Warn().Str("field", field).Str("value", raw).Msg("invalid numeric field, defaulting to 0")
		return 0
	}
	return value
}
