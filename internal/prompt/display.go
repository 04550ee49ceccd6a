package prompt

import (
	"encoding/json"
	"strconv"

	"github.com/manifoldco/promptui"
)

// Display shows message under label until the user goes back. message is shown verbatim: post and comment content
// may contain template syntax.
func Display(label, message string) error {
	p := promptui.Select{
		Label:        label,
		Items:        []string{"⬅️ Back"},
		HideSelected: true,
		Templates: &promptui.SelectTemplates{
			Details: literal(message),
		},
	}

	_, _, err := p.Run()
	return err
}

func DisplayMarshalled(label string, obj any) error {
	marshalled, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return err
	}

	return Display(label, string(marshalled))
}

// literal returns a template that renders s as-is.
func literal(s string) string {
	return "{{ " + strconv.Quote(s) + " }}"
}
