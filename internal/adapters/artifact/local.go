package artifact

import (
	"errors"
	"fmt"
	"os"
)

func readLocal(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("artifact: %s: %w", p, ErrNotFound)
		}
		return nil, fmt.Errorf("artifact: read %s: %w", p, err)
	}
	return data, nil
}
