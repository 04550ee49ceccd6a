package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/RyanW02/chainsocial/pkg/media"
	"github.com/manifoldco/promptui"
)

// NotBlank rejects input that is empty once surrounding whitespace is removed.
func NotBlank(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input must not be blank")
	}

	return nil
}

// LengthBetween returns a ValidateFunc that checks if the input is between min and max characters long, inclusive
// of min and max.
func LengthBetween(min, max int) promptui.ValidateFunc {
	return func(input string) error {
		if len(input) < min {
			return fmt.Errorf("input must be at least %d characters long", min)
		} else if len(input) > max {
			return fmt.Errorf("input must be at most %d characters long", max)
		}

		return nil
	}
}

func FileExists(input string) error {
	info, err := os.Stat(input)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist")
		}

		return err
	}

	if info.IsDir() {
		return fmt.Errorf("file is a directory")
	}

	return nil
}

// MediaReference accepts an empty input, or anything the resolver can turn into a URL.
func MediaReference(resolver *media.Resolver) promptui.ValidateFunc {
	return func(input string) error {
		_, err := resolver.Resolve(strings.TrimSpace(input))
		return err
	}
}
