// conf/consts.go hard coded constants
package conf

import "time"

const (
	SampleRate  = 16000 // Sample rate of every recorded segment
	BitDepth    = 16    // Bit depth of every recorded segment
	NumChannels = 2     // Interleaved channel count of every recorded segment

	// MaxSilenceDuration bounds synthesized gaps between segments
	MaxSilenceDuration = 24 * time.Hour

	SinkRaw = "raw" // raw PCM with a header patched on close
	SinkWAV = "wav" // go-audio/wav encoder

	DefaultFileNameFormat = "2006-01-02-15-04-05"
	EnvPrefix             = "SEAMREC"
	configFileEnv         = EnvPrefix + "_CONFIG"
	appDirName            = "seamrec"
)
