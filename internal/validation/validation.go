package validation

import (
	"fmt"
	"regexp"
)

// PhonePattern определяет допустимый формат номера телефона
// Международный формат E.164: знак + и 8-15 цифр
var PhonePattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// CodePattern определяет формат одноразового SMS кода: 4-8 цифр
var CodePattern = regexp.MustCompile(`^[0-9]{4,8}$`)

// SlugPattern определяет допустимый формат organization slug
// Только строчные латинские буквы, цифры и дефис, 2-64 символа
var SlugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// ValidatePhoneNumber проверяет, что номер соответствует формату E.164
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return fmt.Errorf("phone number cannot be empty")
	}

	if !PhonePattern.MatchString(phone) {
		return fmt.Errorf("phone number must be in international format, e.g. +391234567890")
	}

	return nil
}

// ValidateCode проверяет формат одноразового SMS кода
func ValidateCode(code string) error {
	if code == "" {
		return fmt.Errorf("code cannot be empty")
	}

	if !CodePattern.MatchString(code) {
		return fmt.Errorf("code must be 4-8 digits")
	}

	return nil
}

// ValidateSlug проверяет формат organization slug
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("organization slug cannot be empty")
	}

	if !SlugPattern.MatchString(slug) {
		return fmt.Errorf("organization slug can only contain lowercase letters, numbers and hyphens")
	}

	return nil
}
