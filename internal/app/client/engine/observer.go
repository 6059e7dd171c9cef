package engine

import "contactsync/internal/app/client/processor"

// Result итог синхронизации
type Result struct {
	Mode   Mode
	Status processor.Status
	Err    error
	Stats  processor.Stats
}

// Observer получает события движка. Вызывается из потока, выполняющего Run.
type Observer interface {
	OnStateChange(mode Mode, from, to State)
	// OnProgress сообщает 0 в начале этапа и 100 после его успешного завершения
	OnProgress(state State, percent int)
	OnSyncComplete(result Result)
}
