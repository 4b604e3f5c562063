package report

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"github.com/CodeAndHammer/learngames/internal/mathgame"
	"github.com/CodeAndHammer/learngames/internal/progress"
	"github.com/CodeAndHammer/learngames/internal/throttle"
)

const (
	SummarySheet = "Summary"
	RecentSheet  = "Recent"
	LocksSheet   = "Locks"
)

// LockRow is the state of one throttled action.
type LockRow struct {
	Action      string
	Count       int
	LockedUntil int64
}

// Data is everything the workbook shows for one profile.
type Data struct {
	Profile   string
	Generated time.Time
	Math      mathgame.Progress
	Rewards   progress.Record
	Locks     []LockRow
}

// Collect reads the current records of a profile. throttles maps action
// names to their throttles; elapsed locks are reconciled before they are read.
func Collect(ctx context.Context, profile string, now time.Time, tracker *mathgame.Tracker, rewards *progress.Service, throttles map[string]*throttle.Throttle) (Data, error) {
	d := Data{
		Profile:   profile,
		Generated: now,
		Math:      tracker.Progress(ctx),
		Rewards:   rewards.Get(ctx),
	}
	for _, action := range lo.Keys(throttles) {
		if _, err := throttles[action].ReconcileExpiry(ctx); err != nil {
			return Data{}, fmt.Errorf("reconcile %s: %w", action, err)
		}
		snap := throttles[action].Snapshot(ctx)
		d.Locks = append(d.Locks, LockRow{Action: action, Count: snap.Count, LockedUntil: snap.LockedUntil})
	}
	slices.SortFunc(d.Locks, func(a, b LockRow) int { return strings.Compare(a.Action, b.Action) })
	return d, nil
}

// Build renders d into a new workbook. The caller closes it.
func Build(d Data) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", SummarySheet)

	for _, write := range []func(*excelize.File, Data) error{writeSummary, writeRecent, writeLocks} {
		if err := write(f, d); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func writeSummary(f *excelize.File, d Data) error {
	stats := d.Math.Stats()
	rows := [][]interface{}{
		{"Profile", d.Profile},
		{"Generated", d.Generated.UTC().Format(time.RFC3339)},
		{"Difficulty", string(stats.Difficulty)},
		{"Accuracy", fmt.Sprintf("%.0f%%", stats.Accuracy*100)},
		{"Correct answers", stats.CorrectAnswers},
		{"Total attempts", stats.TotalAttempts},
		{"Current streak", stats.Streak},
		{"Best streak", stats.BestStreak},
		{"Coins", d.Rewards.Coins},
		{"Total earned", d.Rewards.TotalEarned},
		{},
		{"Game", "Completed"},
	}
	games := lo.Keys(d.Rewards.GamesCompleted)
	slices.Sort(games)
	for _, game := range games {
		rows = append(rows, []interface{}{game, d.Rewards.GamesCompleted[game]})
	}
	return writeRows(f, SummarySheet, rows)
}

func writeRecent(f *excelize.File, d Data) error {
	if _, err := f.NewSheet(RecentSheet); err != nil {
		return err
	}
	rows := [][]interface{}{{"#", "Problem", "Result"}}
	for i, o := range d.Math.LastProblems {
		result := "wrong"
		if o.Correct {
			result = "correct"
		}
		rows = append(rows, []interface{}{i + 1, o.Problem, result})
	}
	return writeRows(f, RecentSheet, rows)
}

func writeLocks(f *excelize.File, d Data) error {
	if _, err := f.NewSheet(LocksSheet); err != nil {
		return err
	}
	rows := [][]interface{}{{"Action", "Count", "Locked until"}}
	for _, l := range d.Locks {
		until := ""
		if l.LockedUntil > d.Generated.UnixMilli() {
			until = time.UnixMilli(l.LockedUntil).UTC().Format(time.RFC3339)
		}
		rows = append(rows, []interface{}{l.Action, l.Count, until})
	}
	return writeRows(f, LocksSheet, rows)
}

// Write renders d as an xlsx document to w.
func Write(w io.Writer, d Data) error {
	f, err := Build(d)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

// Save renders d to the xlsx file at path.
func Save(path string, d Data) error {
	f, err := Build(d)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}
