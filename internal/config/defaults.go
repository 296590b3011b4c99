package config

const (
	defaultIncoming   = "~/.local/share/descant/incoming"
	defaultWorking    = "~/.local/share/descant/working"
	defaultOutputs    = "~/.local/share/descant/outputs"
	defaultArchiveDir = "~/.local/share/descant/archive"
	defaultQuarantine = "~/.local/share/descant/quarantine"
	defaultLogDir     = "~/.local/share/descant/logs"
	defaultDBPath     = "~/.local/share/descant/descant.db"

	defaultModel           = "htdemucs"
	defaultSampleRate      = 44100
	defaultBitDepth        = 16
	defaultMP3Encoding     = "v0"
	defaultChunkSeconds    = 600.0
	defaultChunkOverlapSec = 5.0
	defaultCrossfadeMs     = 250
	defaultChunkMax        = 12
	defaultTimeoutSec      = 1800
	defaultMaxRetries      = 2
	defaultSeparatorBinary = "demucs"
	defaultFFmpegBinary    = "ffmpeg"
	defaultFFprobeBinary   = "ffprobe"

	defaultCorruptDest = "quarantine"

	defaultSyncMethod          = "local"
	defaultSyncPollIntervalSec = 30

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with package defaults. It is the
// starting point for Load, which then overlays any file on disk.
func Default() Config {
	return Config{
		Paths: Paths{
			Incoming:   defaultIncoming,
			Working:    defaultWorking,
			OutputsDir: defaultOutputs,
			ArchiveDir: defaultArchiveDir,
			Quarantine: defaultQuarantine,
			LogDir:     defaultLogDir,
			DBPath:     defaultDBPath,
		},
		Queues: []Queue{
			{Name: "default", Root: defaultIncoming},
		},
		Processing: Processing{
			Model:           defaultModel,
			SampleRate:      defaultSampleRate,
			BitDepth:        defaultBitDepth,
			MP3Encoding:     defaultMP3Encoding,
			ChunkingEnabled: true,
			ChunkSeconds:    defaultChunkSeconds,
			ChunkOverlapSec: defaultChunkOverlapSec,
			CrossfadeMs:     defaultCrossfadeMs,
			ChunkMax:        defaultChunkMax,
			TimeoutSec:      defaultTimeoutSec,
			MaxRetries:      defaultMaxRetries,
			SeparatorBinary: defaultSeparatorBinary,
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
		},
		Variants: Variants{
			Enabled: []string{"instrumental"},
		},
		Recovery: Recovery{
			CorruptDest: defaultCorruptDest,
		},
		Sync: Sync{
			Method:          defaultSyncMethod,
			PollIntervalSec: defaultSyncPollIntervalSec,
		},
		Library: Library{
			Enabled: false,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
