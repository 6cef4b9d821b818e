package vertretung

import "sphnotify/lib/telemetry"

var tracer = telemetry.Tracer("sphnotify.services.vertretung")
