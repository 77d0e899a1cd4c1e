package assembler

import (
	"encoding/csv"
	"io"
	"strconv"
)

// Columns returns the full output header: identity columns, the feature
// contract in order, then the label.
func Columns() []string {
	cols := make([]string, 0, len(FeatureNames)+3)
	cols = append(cols, "encounter_id", "patient_id")
	cols = append(cols, FeatureNames...)
	return append(cols, LabelColumn)
}

// WriteCSV writes the feature table. Numeric formatting is the shortest
// round-trippable representation, so identical rows serialize identically.
func WriteCSV(w io.Writer, rows []FeatureRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns()); err != nil {
		return err
	}

	for _, r := range rows {
		record := make([]string, 0, len(FeatureNames)+3)
		record = append(record, r.EncounterID, r.PatientID)
		for _, v := range r.Features() {
			record = append(record, formatValue(v))
		}
		record = append(record, formatValue(r.Readmitted30d))
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
