package sim

import (
	"encoding/json"
	"os"

	"codevolt/internal/telemetry"
)

// FileWriter writes events and incidents to JSONL files.
type FileWriter struct {
	eventFile    *os.File
	incidentFile *os.File
	eventEnc     *json.Encoder
	incidentEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. incidentPath may be empty to keep
// incidents out of the export.
func NewFileWriter(eventPath, incidentPath string) (*FileWriter, error) {
	ef, err := os.Create(eventPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{eventFile: ef, eventEnc: json.NewEncoder(ef)}
	if incidentPath != "" {
		inf, err := os.Create(incidentPath)
		if err != nil {
			ef.Close()
			return nil, err
		}
		fw.incidentFile = inf
		fw.incidentEnc = json.NewEncoder(inf)
	}
	return fw, nil
}

// WriteEvent logs a single event row.
func (f *FileWriter) WriteEvent(row telemetry.EventRow) error {
	return f.eventEnc.Encode(row)
}

// WriteEvents logs multiple event rows.
func (f *FileWriter) WriteEvents(rows []telemetry.EventRow) error {
	for _, r := range rows {
		if err := f.WriteEvent(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteIncident logs an incident report, if enabled.
func (f *FileWriter) WriteIncident(row telemetry.IncidentRow) error {
	if f.incidentEnc == nil {
		return nil
	}
	return f.incidentEnc.Encode(row)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	if f.eventFile != nil {
		if e := f.eventFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if f.incidentFile != nil {
		if e := f.incidentFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
