package engine

// Mode вид синхронизации
type Mode int

const (
	ModeNone Mode = iota
	ModeFullSyncFirstTime
	ModeFullSync
	ModeServerSync
	// ModeBackground миниатюры и запись в адресную книгу после успешной синхронизации
	ModeBackground
)

func (m Mode) String() string {
	switch m {
	case ModeFullSyncFirstTime:
		return "FULL_SYNC_FIRST_TIME"
	case ModeFullSync:
		return "FULL_SYNC"
	case ModeServerSync:
		return "SERVER_SYNC"
	case ModeBackground:
		return "BACKGROUND"
	default:
		return "NONE"
	}
}

// State текущий этап
type State int

const (
	StateIdle State = iota
	StateFetchingServerContacts
	StateFetchingNativeContacts
	StateSyncingProfile
	StateUpdatingServerContacts
	StateFetchingServerThumbnails
	StateUpdatingServerThumbnails
	StateUpdatingNativeContacts
)

var stateNames = map[State]string{
	StateIdle:                     "IDLE",
	StateFetchingServerContacts:   "FETCHING_SERVER_CONTACTS",
	StateFetchingNativeContacts:   "FETCHING_NATIVE_CONTACTS",
	StateSyncingProfile:           "SYNCING_PROFILE",
	StateUpdatingServerContacts:   "UPDATING_SERVER_CONTACTS",
	StateFetchingServerThumbnails: "FETCHING_SERVER_THUMBNAILS",
	StateUpdatingServerThumbnails: "UPDATING_SERVER_THUMBNAILS",
	StateUpdatingNativeContacts:   "UPDATING_NATIVE_CONTACTS",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Stages возвращает этапы режима в порядке выполнения
func Stages(m Mode) []State {
	switch m {
	case ModeFullSyncFirstTime:
		return []State{StateFetchingServerContacts, StateFetchingNativeContacts, StateSyncingProfile, StateUpdatingServerContacts}
	case ModeFullSync:
		return []State{StateFetchingServerContacts, StateFetchingNativeContacts, StateUpdatingServerContacts}
	case ModeServerSync:
		return []State{StateFetchingServerContacts, StateUpdatingServerContacts}
	case ModeBackground:
		return []State{StateFetchingServerThumbnails, StateUpdatingServerThumbnails, StateUpdatingNativeContacts}
	default:
		return nil
	}
}

// priority определяет, какой из одновременно назначенных режимов запускать первым
func (m Mode) priority() int {
	switch m {
	case ModeFullSyncFirstTime, ModeFullSync:
		return 3
	case ModeServerSync:
		return 2
	case ModeBackground:
		return 1
	default:
		return 0
	}
}
