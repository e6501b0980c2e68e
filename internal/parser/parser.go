package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"jobsince/internal/accounting"
	"jobsince/internal/model"
)

const (
	fieldJobID = iota
	fieldName
	fieldUser
	fieldState
	fieldStart
	fieldEnd
	fieldExitCode
	numFields
)

const timeLayout = "2006-01-02T15:04:05"

// Stats counts the lines that did not become records, and the records that
// were kept with degraded fields.
type Stats struct {
	Lines         int
	Malformed     int
	Steps         int
	Active        int
	UnknownStates int
	BadTimes      int
}

// Anomalies is the number of lines or fields the user might want to know about.
func (s Stats) Anomalies() int {
	return s.Malformed + s.UnknownStates + s.BadTimes
}

type Result struct {
	Records []model.JobRecord
	Stats   Stats
}

type Parser struct {
	Location  *time.Location
	Delimiter string
	Logger    *zap.Logger
}

func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{Location: time.Local, Delimiter: accounting.Delimiter, Logger: logger}
}

// ParseBytes is Parse over an in-memory buffer.
func (p *Parser) ParseBytes(b []byte) (*Result, error) {
	return p.Parse(bytes.NewReader(b))
}

// Parse reads one record per line, in backend order. Only a read failure is
// an error; bad lines are counted in Stats and skipped.
func (p *Parser) Parse(r io.Reader) (*Result, error) {
	res := &Result{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		res.Stats.Lines++

		rec, ok := p.parseLine(lineNo, line, &res.Stats)
		if ok {
			res.Records = append(res.Records, rec)
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read accounting output: %w", err)
	}
	return res, nil
}

func (p *Parser) parseLine(lineNo int, line string, stats *Stats) (model.JobRecord, bool) {
	fields := p.split(line)
	if len(fields) < numFields {
		stats.Malformed++
		p.Logger.Warn("skipping malformed accounting line",
			zap.Int("line", lineNo), zap.Int("fields", len(fields)), zap.Int("want", numFields))
		return model.JobRecord{}, false
	}

	id := strings.TrimSpace(fields[fieldJobID])
	if id == "" {
		stats.Malformed++
		p.Logger.Warn("skipping accounting line without job id", zap.Int("line", lineNo))
		return model.JobRecord{}, false
	}
	// Steps such as 123.batch or 123_4.extern belong to a job already listed.
	if strings.Contains(id, ".") {
		stats.Steps++
		p.Logger.Debug("skipping job step", zap.String("job_id", id))
		return model.JobRecord{}, false
	}

	rawState := strings.TrimSpace(fields[fieldState])
	if model.IsActiveState(rawState) {
		stats.Active++
		p.Logger.Debug("skipping unfinished job", zap.String("job_id", id), zap.String("state", rawState))
		return model.JobRecord{}, false
	}

	rec := model.JobRecord{
		JobID:    id,
		Name:     strings.TrimSpace(fields[fieldName]),
		User:     strings.TrimSpace(fields[fieldUser]),
		State:    model.ParseState(rawState),
		RawState: rawState,
		ExitCode: parseExitCode(fields[fieldExitCode]),
	}
	if rec.State == model.StateUnknown {
		stats.UnknownStates++
		p.Logger.Warn("unrecognized job state", zap.String("job_id", id), zap.String("state", rawState))
	}

	rec.StartTime = p.parseTime(id, "start", fields[fieldStart], stats)
	rec.EndTime = p.parseTime(id, "end", fields[fieldEnd], stats)
	if rec.StartTime != nil && rec.EndTime != nil && rec.EndTime.Before(*rec.StartTime) {
		stats.BadTimes++
		p.Logger.Warn("job ends before it starts, dropping start time",
			zap.String("job_id", id), zap.Time("start", *rec.StartTime), zap.Time("end", *rec.EndTime))
		rec.StartTime = nil
	}
	return rec, true
}

// split cuts a line into exactly numFields fields when it has more: a single
// trailing empty field is dropped and any other surplus belongs to the job
// name, which is the only free-text column.
func (p *Parser) split(line string) []string {
	delim := p.Delimiter
	if delim == "" {
		delim = accounting.Delimiter
	}
	fields := strings.Split(line, delim)
	if len(fields) > numFields && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	if len(fields) <= numFields {
		return fields
	}

	extra := len(fields) - numFields
	out := make([]string, 0, numFields)
	out = append(out, fields[fieldJobID])
	out = append(out, strings.Join(fields[fieldName:fieldName+extra+1], delim))
	out = append(out, fields[fieldName+extra+1:]...)
	return out
}

func (p *Parser) parseTime(id, which, raw string, stats *Stats) *time.Time {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "", "Unknown", "None":
		return nil
	}

	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(timeLayout, raw, loc)
	if err != nil {
		stats.BadTimes++
		p.Logger.Warn("unparseable timestamp",
			zap.String("job_id", id), zap.String("field", which), zap.String("value", raw))
		return nil
	}
	return &t
}

// parseExitCode keeps the code from "code:signal"; empty means not reported.
func parseExitCode(raw string) *int {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}
