// Package ui форматирует вывод клиента в терминал
package ui

import (
	"fmt"
	"io"
	"os"

	"contactsync/internal/app/client/engine"
	"contactsync/internal/app/client/processor"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	Success = color.New(color.FgGreen, color.Bold)
	Warn    = color.New(color.FgYellow)
	Fail    = color.New(color.FgRed, color.Bold)
	Faint   = color.New(color.Faint)
)

// IsTerminal сообщает, подключен ли f к терминалу
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Progress печатает ход синхронизации; в терминале проценты обновляются в одной строке
type Progress struct {
	w   io.Writer
	tty bool
}

func NewProgress(f *os.File) *Progress {
	return &Progress{w: f, tty: IsTerminal(f)}
}

func (p *Progress) OnStateChange(mode engine.Mode, _, to engine.State) {
	if to == engine.StateIdle {
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", Faint.Sprintf("[%s]", mode), to)
}

func (p *Progress) OnProgress(state engine.State, percent int) {
	if !p.tty {
		return
	}
	fmt.Fprintf(p.w, "\r  %-28s %3d%%", state, percent)
	if percent >= 100 {
		fmt.Fprintln(p.w)
	}
}

func (p *Progress) OnSyncComplete(r engine.Result) {
	switch r.Status {
	case processor.StatusSuccess:
		Success.Fprintf(p.w, "✓ %s завершена\n", r.Mode)
	case processor.StatusUserCancelled:
		Warn.Fprintf(p.w, "• %s отменена\n", r.Mode)
	default:
		Fail.Fprintf(p.w, "✗ %s: %v\n", r.Mode, r.Err)
	}
}

// Stats печатает счетчики синхронизации
func Stats(w io.Writer, s processor.Stats) {
	fmt.Fprintf(w, "  Страниц загружено:        %d\n", s.Pages)
	fmt.Fprintf(w, "  Контактов с сервера:      %d\n", s.Downloaded)
	fmt.Fprintf(w, "  Контактов на сервер:      %d\n", s.Uploaded)
	fmt.Fprintf(w, "  Миниатюр:                 %d\n", s.Thumbnails)
	fmt.Fprintf(w, "  Адресная книга +/~/-:     %d/%d/%d\n", s.DeviceAdds, s.DeviceEdits, s.DeviceDrops)
}
