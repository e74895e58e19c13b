package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yanun0323/logs"

	"main/internal/model"
)

// Replay reads every journaled fill under dir in segment order. A torn
// final line (from a crash mid-write) is skipped rather than failing the
// whole replay; everything before it is intact.
func Replay(dir string) ([]model.Fill, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var fills []model.Fill
	for _, name := range names {
		segment, err := replaySegment(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		fills = append(fills, segment...)
	}
	return fills, nil
}

func replaySegment(path string) ([]model.Fill, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var fills []model.Fill
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var fill model.Fill
		if err := json.Unmarshal(raw, &fill); err != nil {
			logs.Warnf("journal: skip malformed line %d in %s: %v", line, filepath.Base(path), err)
			continue
		}
		if err := fill.Validate(); err != nil {
			logs.Warnf("journal: skip invalid fill at line %d in %s: %v", line, filepath.Base(path), err)
			continue
		}
		fills = append(fills, fill)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return fills, nil
}
