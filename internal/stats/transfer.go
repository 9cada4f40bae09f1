package stats

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// ExportBlob is the full-fidelity export; ImportAll accepts it back unchanged
type ExportBlob struct {
	Stats      Aggregate        `json:"stats"`
	Records    []SessionSummary `json:"records"`
	ExportTime time.Time        `json:"exportTime"`
	AppVersion string           `json:"appVersion"`
}

// CSVHeader is the first row of the CSV export
var CSVHeader = []string{"日期", "时长(秒)", "步数", "平均心率", "卡路里"}

func (s *Store) ExportAll() ExportBlob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ExportBlob{
		Stats:      s.agg,
		Records:    append([]SessionSummary{}, s.records...),
		ExportTime: s.now().UTC(),
		AppVersion: s.appVersion,
	}
}

// WriteJSON writes the export as indented JSON
func (s *Store) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s.ExportAll())
}

// WriteCSV writes one row per recent record, newest first
func (s *Store) WriteCSV(w io.Writer) error {
	records := s.Records()

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		heartRate := ""
		if r.AvgHeartRate > 0 {
			heartRate = strconv.Itoa(r.AvgHeartRate)
		}
		row := []string{
			r.Date.In(s.loc).Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.DurationSeconds),
			strconv.Itoa(r.Steps),
			heartRate,
			strconv.Itoa(int(math.Round(r.Calories))),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ImportAll replaces the aggregate and records with an exported blob.
// The blob must carry both "stats" and "records"; anything malformed is rejected
// with ErrInvalidImportFormat and nothing is changed. The previous data is kept
// under the backup key.
func (s *Store) ImportAll(ctx context.Context, raw []byte) error {
	blob, err := parseImport(raw)
	if err != nil {
		return err
	}
	for i := range blob.Records {
		blob.Records[i].Date = normalizeTime(blob.Records[i].Date)
	}

	backup, err := json.Marshal(s.ExportAll())
	if err != nil {
		return fmt.Errorf("stats: encode backup: %w", err)
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := s.kv.Put(ctx, KeyBackup, backup); err != nil {
		return fmt.Errorf("stats: write backup: %w", err)
	}

	s.mu.RLock()
	state := s.statePtr()
	s.mu.RUnlock()

	records := s.truncate(append(make([]SessionSummary, 0, s.capacity), blob.Records...))
	docs, err := encodeDocuments(blob.Stats, records, state, s.now())
	if err != nil {
		return err
	}
	if err := s.kv.PutAll(ctx, docs); err != nil {
		return fmt.Errorf("stats: persist import: %w", err)
	}

	s.mu.Lock()
	s.agg = blob.Stats
	s.records = records
	snap := s.buildSnapshot()
	s.mu.Unlock()

	s.logger.Printf("StatsStore: imported %d sessions, %d records", blob.Stats.TotalSessions, len(snap.Records))
	s.changedEvent.Notify(snap)
	return nil
}

func parseImport(raw []byte) (ExportBlob, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ExportBlob{}, fmt.Errorf("%w: %v", ErrInvalidImportFormat, err)
	}
	statsRaw, ok := fields["stats"]
	if !ok || isNull(statsRaw) {
		return ExportBlob{}, fmt.Errorf("%w: missing stats", ErrInvalidImportFormat)
	}
	recordsRaw, ok := fields["records"]
	if !ok || isNull(recordsRaw) {
		return ExportBlob{}, fmt.Errorf("%w: missing records", ErrInvalidImportFormat)
	}

	var blob ExportBlob
	if err := json.Unmarshal(statsRaw, &blob.Stats); err != nil {
		return ExportBlob{}, fmt.Errorf("%w: stats: %v", ErrInvalidImportFormat, err)
	}
	if err := json.Unmarshal(recordsRaw, &blob.Records); err != nil {
		return ExportBlob{}, fmt.Errorf("%w: records: %v", ErrInvalidImportFormat, err)
	}
	for i, r := range blob.Records {
		if r.DurationSeconds < 0 || r.BPM < 0 || r.Steps < 0 || r.Calories < 0 {
			return ExportBlob{}, fmt.Errorf("%w: record %d has negative values", ErrInvalidImportFormat, i)
		}
	}
	if blob.Stats.TotalSessions < 0 || blob.Stats.TotalTimeSeconds < 0 {
		return ExportBlob{}, fmt.Errorf("%w: negative totals", ErrInvalidImportFormat)
	}
	if v, ok := fields["appVersion"]; ok {
		_ = json.Unmarshal(v, &blob.AppVersion)
	}
	return blob, nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
