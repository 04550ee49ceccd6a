package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

const pageSize = 10

type SelectOption struct {
	Label string
	Emoji string
	Func  func() error
}

func (o SelectOption) String() string {
	if len(o.Emoji) > 0 {
		return o.Emoji + " " + o.Label
	}

	return o.Label
}

func NewSelectOption(label, emoji string, f func() error) SelectOption {
	return SelectOption{
		Label: label,
		Emoji: emoji,
		Func:  f,
	}
}

var errOutOfRange = errors.New("selected index out of range")

func Select[T fmt.Stringer](label string, options ...T) (*T, error) {
	return SelectWithConfig(label, nil, options...)
}

// SelectWithConfig lets configurator adjust the prompt before it runs. Lists longer than a page can be searched
// with "/".
func SelectWithConfig[T fmt.Stringer](label string, configurator func(p *promptui.Select), options ...T) (*T, error) {
	prompt := promptui.Select{
		Label:        label,
		Items:        options,
		HideSelected: true,
		Size:         pageSize,
	}

	if len(options) > pageSize {
		prompt.Searcher = searcher(options)
	}

	if configurator != nil {
		configurator(&prompt)
	}

	i, _, err := prompt.Run()
	if err != nil {
		return nil, err
	}

	if i < 0 || i >= len(options) {
		return nil, errOutOfRange
	}

	return &options[i], nil
}

// searcher matches options whose label contains the input, ignoring case.
func searcher[T fmt.Stringer](options []T) func(input string, index int) bool {
	return func(input string, index int) bool {
		label := strings.ToLower(options[index].String())
		return strings.Contains(label, strings.ToLower(strings.TrimSpace(input)))
	}
}

func SelectAndExecute(label string, options ...SelectOption) error {
	option, err := Select(label, options...)
	if err != nil {
		return err
	}

	return option.Func()
}
