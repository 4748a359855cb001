package iocli

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Проверяем что NewStdio возвращает валидный объект
func TestNewStdio(t *testing.T) {
	stdio := NewStdio()
	assert.NotNil(t, stdio)
}

// Тесты для Println и Printf — переадресуют в fmt.Println/Printf,
// здесь можно проверить просто, что вызовы не падают.
func TestPrintlnAndPrintf(t *testing.T) {
	stdio := NewStdio()

	assert.NotPanics(t, func() {
		stdio.Println("hello", "world")
	})
	assert.NotPanics(t, func() {
		stdio.Printf("test %d %s", 1, "abc")
	})
}

// подменяет os.Stdin на pipe с заранее подготовленным вводом
func withStdin(t *testing.T, input string, fn func()) {
	t.Helper()

	r, w, err := os.Pipe()
	assert.NoError(t, err)

	// Пишем в pipe в отдельной горутине, имитируя ввод пользователя
	go func() {
		_, _ = w.Write([]byte(input))
		_ = w.Close()
	}()

	oldStdin := os.Stdin
	defer func() { os.Stdin = oldStdin }()
	os.Stdin = r

	fn()
}

// Тест ReadInput: читаем из буфера вместо os.Stdin
func TestReadInput(t *testing.T) {
	input := "user input\n"
	withStdin(t, input, func() {
		stdio := NewStdio()
		result, err := stdio.ReadInput("Prompt: ")
		assert.NoError(t, err)
		assert.Equal(t, strings.TrimSpace(input), result)
	})
}

func TestReadConfirm(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		defaultYes bool
		expected   bool
	}{
		{name: "explicit yes", input: "y\n", expected: true},
		{name: "explicit yes word", input: "yes\n", expected: true},
		{name: "explicit no", input: "n\n", defaultYes: true, expected: false},
		{name: "empty takes default no", input: "\n", expected: false},
		{name: "empty takes default yes", input: "\n", defaultYes: true, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withStdin(t, tt.input, func() {
				stdio := NewStdio()
				result, err := stdio.ReadConfirm("Continue?", tt.defaultYes)
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			})
		})
	}
}
