package sph

import (
	"sphnotify/lib/restyutil"
	"sphnotify/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

var tracer = telemetry.Tracer("sphnotify.lib.scrapers.sph")
var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}

func restyInstrument(client *resty.Client) {
	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)
}
