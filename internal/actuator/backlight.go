package actuator

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Backlight Linux sysfs背光设备，例如 /sys/class/backlight/intel_backlight
type Backlight struct {
	dir string
	max int
}

func NewBacklight(dir string) (*Backlight, error) {
	maxValue, err := readInt(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return nil, fmt.Errorf("读取最大亮度失败: %w", err)
	}
	if maxValue <= 0 {
		return nil, fmt.Errorf("最大亮度无效: %d", maxValue)
	}
	return &Backlight{dir: dir, max: maxValue}, nil
}

func (b *Backlight) SetBrightness(percent uint8) error {
	if percent > 100 {
		return fmt.Errorf("亮度超出范围: %d", percent)
	}
	value := int(percent) * b.max / 100
	path := filepath.Join(b.dir, "brightness")
	if err := os.WriteFile(path, []byte(strconv.Itoa(value)), 0o644); err != nil {
		return fmt.Errorf("写入亮度失败: %w", err)
	}
	return nil
}

// Current 当前亮度百分比
func (b *Backlight) Current() (int, error) {
	value, err := readInt(filepath.Join(b.dir, "brightness"))
	if err != nil {
		return 0, err
	}
	return value * 100 / b.max, nil
}

func readInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
