package crowdsafe

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// GetTTY opens and initializes the real terminal
func GetTTY() (tcell.Screen, error) {
	defStyle := tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset)

	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("could not get new screen: %w", err)
	}

	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("could not initialize screen: %w", err)
	}
	s.SetStyle(defStyle)
	s.Clear()

	return s, nil
}

// WriteBar fills a rectangle with style
// x1 = starting X axis (from left), x2 = ending X axis (from left)
// y1 = starting Y axis (from top), y2 = ending Y axis (from top)
func WriteBar(s tcell.Screen, x1, y1, x2, y2 int, style tcell.Style) {
	for row := y1; row < y2; row++ {
		for col := x1; col < x2; col++ {
			s.SetContent(col, row, ' ', nil, style)
		}
	}
}
