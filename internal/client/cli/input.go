package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/schoolkeeper/internal/client/models"
	"github.com/dmitrijs2005/schoolkeeper/internal/common"
)

// ReadAssignments prints a prompt to w and reads "name=value" lines from
// scanner until an empty line or EOF. The raw lines are returned unchanged;
// parsing is left to ParseAssignments. The REPL passes its own scanner so
// both read the same buffered stdin.
func ReadAssignments(scanner *bufio.Scanner, prompt string, w io.Writer) ([]string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n(one name=value per line, empty line to finish)\n"); err != nil {
		return nil, err
	}

	lines := make([]string, 0)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// ParseAssignments turns name=value tokens into record fields. Values stay
// strings; a double-quoted value is unquoted so it may carry spaces or '='
// when read line by line. Numbers and booleans are converted later against
// the kind's payload (see models.Coerce).
func ParseAssignments(items []string) (models.Fields, error) {
	out := make(models.Fields, len(items))
	for _, it := range items {
		name, value, ok := strings.Cut(it, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: expected name=value, got %q", common.ErrValidation, it)
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			uq, err := strconv.Unquote(value)
			if err != nil {
				return nil, fmt.Errorf("%w: bad quoted value for %s: %v", common.ErrValidation, name, err)
			}
			value = uq
		}
		out[name] = value
	}
	return out, nil
}
