package logger

import (
	"github.com/sirupsen/logrus"
)

// Log é o logger do processo. Configurado uma vez em Init, usado por
// todos os pacotes.
var Log = logrus.New()

// Init configura nível e formato do logger.
func Init(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}
