package prompt

import (
	"github.com/manifoldco/promptui"
)

func Text(label string, validators ...promptui.ValidateFunc) (string, error) {
	p := promptui.Prompt{
		Label:       label,
		Validate:    combineValidators(validators...),
		HideEntered: true,
	}

	return p.Run()
}

func TextWithDefault(label, defaultValue string, validators ...promptui.ValidateFunc) (string, error) {
	p := promptui.Prompt{
		Label:       label,
		Default:     defaultValue,
		AllowEdit:   true,
		Validate:    combineValidators(validators...),
		HideEntered: true,
	}

	return p.Run()
}

func Confirm(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	if _, err := p.Run(); err != nil {
		if err == promptui.ErrAbort {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func combineValidators(validators ...promptui.ValidateFunc) promptui.ValidateFunc {
	return func(s string) error {
		for _, validator := range validators {
			if err := validator(s); err != nil {
				return err
			}
		}

		return nil
	}
}
