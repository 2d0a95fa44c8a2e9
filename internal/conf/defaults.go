// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "FrogWatch")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "frogwatch.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "frogwatch.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "frogwatch")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "frogwatch")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("predictor.endpoints", []string{})
	viper.SetDefault("predictor.timeout", 15*time.Second)
	viper.SetDefault("predictor.mockfallback", true)

	viper.SetDefault("geocoder.baseurl", "https://nominatim.openstreetmap.org/reverse")
	viper.SetDefault("geocoder.timeout", 10*time.Second)

	viper.SetDefault("realtime.debug", false)
	viper.SetDefault("realtime.buffersize", 16)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("blobstore.baseurl", "https://storage.googleapis.com/frogwatch-audio")
}
