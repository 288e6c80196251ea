package replay

import "github.com/zoobzio/capitan"

// Playback lifecycle signals.
var (
	// Loaded is emitted when a log file is read and decoded.
	Loaded = capitan.NewSignal(
		"fold.replay.loaded",
		"Replay log loaded",
	)

	// Reloaded is emitted when a log file change resets playback.
	Reloaded = capitan.NewSignal(
		"fold.replay.reloaded",
		"Replay log reloaded after file change",
	)

	// LoadFailed is emitted when a log file cannot be read or decoded.
	LoadFailed = capitan.NewSignal(
		"fold.replay.load.failed",
		"Replay log load failed",
	)

	// Looped is emitted when playback restarts from the beginning.
	Looped = capitan.NewSignal(
		"fold.replay.looped",
		"Replay restarted from beginning",
	)

	// Finished is emitted when a non-looping playback exhausts the log.
	Finished = capitan.NewSignal(
		"fold.replay.finished",
		"Replay exhausted the log",
	)
)

// Field keys for replay events.
var (
	// KeyFile is the log file path.
	KeyFile = capitan.NewStringKey("file")

	// KeyRecordCount is the number of records decoded from the log.
	KeyRecordCount = capitan.NewIntKey("record_count")

	// KeyEpoch is the seek epoch after a loop or reload.
	KeyEpoch = capitan.NewIntKey("epoch")

	// KeyError is the error message when a load fails.
	KeyError = capitan.NewStringKey("error")
)
