package domain

// Stage is a lead's position in the outbound sales funnel.
type Stage string

const (
	StageCold              Stage = "cold"
	StageSent              Stage = "sent"
	StageReplied           Stage = "replied"
	StageWarm              Stage = "warm"
	StageHot               Stage = "hot"
	StageAppointmentBooked Stage = "appointment_booked"
	StageClosed            Stage = "closed"
	StageNotInterested     Stage = "not_interested"
	StageReactivation      Stage = "reactivation"
	StageNoShow            Stage = "no_show"
	StagePending           Stage = "pending"
)

// Stages lists every stage in funnel display order.
var Stages = []Stage{
	StageCold,
	StageSent,
	StageReplied,
	StageWarm,
	StageHot,
	StageAppointmentBooked,
	StageClosed,
	StageNotInterested,
	StageReactivation,
	StageNoShow,
	StagePending,
}

var knownStages = func() map[Stage]struct{} {
	m := make(map[Stage]struct{}, len(Stages))
	for _, s := range Stages {
		m[s] = struct{}{}
	}
	return m
}()

// IsKnownStage reports whether stage is one of the enumerated stages.
func IsKnownStage(stage string) bool {
	_, ok := knownStages[Stage(stage)]
	return ok
}

// IsTerminal reports whether no automatic transition may leave stage.
func (s Stage) IsTerminal() bool {
	return s == StageClosed || s == StageNotInterested
}

func (s Stage) String() string { return string(s) }
