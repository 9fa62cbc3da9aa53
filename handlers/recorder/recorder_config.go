package recorder

type RecorderConfig struct {
	DataDir   string `json:"data_dir" yaml:"data_dir"`
	FileName  string `json:"file_name" yaml:"file_name"`
	FlushRows int    `json:"flush_rows" yaml:"flush_rows"` // Buffered rows written per flush.
}

func DefaultConfig() RecorderConfig {
	return RecorderConfig{
		DataDir:   "data",
		FileName:  "sensor.csv",
		FlushRows: 50,
	}
}

func (c RecorderConfig) flushRows() int {
	if c.FlushRows <= 0 {
		return 1
	}
	return c.FlushRows
}

func (c RecorderConfig) fileName() string {
	if c.FileName == "" {
		return "sensor.csv"
	}
	return c.FileName
}
