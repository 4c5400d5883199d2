package supply

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"bscwallet/pkg/errs"
	"bscwallet/pkg/models"
	"bscwallet/pkg/validate"
)

// LoadRecipients reads a recipient list from path. See ReadRecipients for the format.
func LoadRecipients(path string) ([]models.RecipientRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err)
	}
	defer func() { _ = f.Close() }()
	return ReadRecipients(f)
}

// ReadRecipients parses headerless comma-separated rows of [sequence, address, ...].
// Rows with fewer than two columns are skipped. Addresses are kept as written; they are
// checked per transfer, not here.
func ReadRecipients(r io.Reader) ([]models.RecipientRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var out []models.RecipientRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.ErrIO, err)
		}
		if len(row) < 2 {
			continue
		}
		out = append(out, models.RecipientRecord{
			No:      strings.TrimSpace(row[0]),
			Address: strings.TrimSpace(row[1]),
		})
	}
	return out, nil
}

// InvalidRecipients returns the records whose address would be rejected at transfer time.
func InvalidRecipients(recs []models.RecipientRecord) []models.RecipientRecord {
	var bad []models.RecipientRecord
	for _, r := range recs {
		if !validate.IsValidAddress(r.Address) {
			bad = append(bad, r)
		}
	}
	return bad
}

// WriteSummaryCSV exports the per-recipient results of a run.
func WriteSummaryCSV(w io.Writer, s models.DistributionSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"no", "address", "status", "tx_hash", "amount", "error"}); err != nil {
		return errs.Wrap(errs.ErrIO, err)
	}
	for _, r := range s.Results {
		row := []string{r.Recipient.No, r.Recipient.Address, r.Status(), r.TxHash(), r.Amount, r.Error()}
		if err := cw.Write(row); err != nil {
			return errs.Wrap(errs.ErrIO, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errs.Wrap(errs.ErrIO, fmt.Errorf("write summary: %w", err))
	}
	return nil
}
