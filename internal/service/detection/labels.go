package detection

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadLabels reads one class name per line. Line order defines the class id.
func LoadLabels(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open classes file: %w", err)
	}
	defer file.Close()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read classes file: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("classes file %s is empty", path)
	}
	return labels, nil
}

// ClassIndex resolves a class name to its id.
func ClassIndex(labels []string, name string) (int, error) {
	for i, label := range labels {
		if label == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("target class %q not found in %d labels", name, len(labels))
}

// Label returns the class name for id, or a placeholder for unknown ids.
func Label(labels []string, id int) string {
	if id >= 0 && id < len(labels) {
		return labels[id]
	}
	return fmt.Sprintf("class%d", id)
}
