package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DataDirCheck verifies the data directory exists and is writable and looks
// for temp files left behind by interrupted writes.
type DataDirCheck struct {
	dataDir string
	fix     bool
}

// NewDataDirCheck creates a new data directory check. With fix set, a missing
// directory is created and stale temp files are removed.
func NewDataDirCheck(dataDir string, fix bool) *DataDirCheck {
	return &DataDirCheck{dataDir: dataDir, fix: fix}
}

func (c *DataDirCheck) Name() string {
	return "Data Directory"
}

func (c *DataDirCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	info, err := os.Stat(c.dataDir)
	switch {
	case os.IsNotExist(err):
		if !c.fix {
			result.Items = append(result.Items, CheckItem{
				Label:   "Exists",
				Status:  StatusWarn,
				Detail:  fmt.Sprintf("%s does not exist yet", c.dataDir),
				Fixable: true,
			})
			return result
		}
		if err := os.MkdirAll(filepath.Join(c.dataDir, "logs"), 0o755); err != nil {
			result.Items = append(result.Items, CheckItem{
				Label:  "Exists",
				Status: StatusFail,
				Detail: fmt.Sprintf("failed to create: %v", err),
			})
			return result
		}
		result.Items = append(result.Items, CheckItem{
			Label:  "Exists",
			Status: StatusPass,
			Detail: "created " + c.dataDir,
		})
	case err != nil:
		result.Items = append(result.Items, CheckItem{
			Label:  "Exists",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	case !info.IsDir():
		result.Items = append(result.Items, CheckItem{
			Label:  "Exists",
			Status: StatusFail,
			Detail: fmt.Sprintf("%s is not a directory", c.dataDir),
		})
		return result
	default:
		result.Items = append(result.Items, CheckItem{
			Label:  "Exists",
			Status: StatusPass,
			Detail: c.dataDir,
		})
	}

	result.Items = append(result.Items, c.checkWritable())
	result.Items = append(result.Items, c.checkTempFiles()...)

	return result
}

func (c *DataDirCheck) checkWritable() CheckItem {
	f, err := os.CreateTemp(c.dataDir, ".doctor-*")
	if err != nil {
		return CheckItem{Label: "Writable", Status: StatusFail, Detail: err.Error()}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	return CheckItem{Label: "Writable", Status: StatusPass}
}

func (c *DataDirCheck) checkTempFiles() []CheckItem {
	entries, err := os.ReadDir(c.dataDir)
	if err != nil {
		return []CheckItem{{Label: "Read directory", Status: StatusFail, Detail: err.Error()}}
	}

	var stale []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".tmp") {
			stale = append(stale, entry.Name())
		}
	}

	if len(stale) == 0 {
		return []CheckItem{{Label: "No stale temp files", Status: StatusPass}}
	}

	items := make([]CheckItem, 0, len(stale))
	for _, name := range stale {
		path := filepath.Join(c.dataDir, name)

		if !c.fix {
			items = append(items, CheckItem{
				Label:   name,
				Status:  StatusWarn,
				Detail:  "left over from an interrupted write",
				Fixable: true,
			})
			continue
		}

		if err := os.Remove(path); err != nil {
			items = append(items, CheckItem{
				Label:  name,
				Status: StatusFail,
				Detail: fmt.Sprintf("failed to delete: %v", err),
			})
		} else {
			items = append(items, CheckItem{
				Label:  name,
				Status: StatusPass,
				Detail: "deleted stale temp file",
			})
		}
	}
	return items
}
