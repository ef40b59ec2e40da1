package domain

// Channel is the medium used to reach a lead.
type Channel string

const (
	ChannelColdCall    Channel = "coldcall"
	ChannelColdSMS     Channel = "coldsms"
	ChannelColdEmail   Channel = "coldemail"
	ChannelFBMessenger Channel = "fb_messenger"
	ChannelSalesCall   Channel = "sales_call"
	ChannelLinkedInDM  Channel = "linkedin_dm"
)

var knownChannels = map[Channel]struct{}{
	ChannelColdCall:    {},
	ChannelColdSMS:     {},
	ChannelColdEmail:   {},
	ChannelFBMessenger: {},
	ChannelSalesCall:   {},
	ChannelLinkedInDM:  {},
}

// IsKnownChannel reports whether channel is one of the enumerated channels.
func IsKnownChannel(channel string) bool {
	_, ok := knownChannels[Channel(channel)]
	return ok
}

// InteractionType maps an outbound channel to the interaction recorded when
// a message goes out on it.
func (c Channel) InteractionType() InteractionType {
	switch c {
	case ChannelColdSMS:
		return InteractionSMS
	case ChannelColdEmail:
		return InteractionEmail
	case ChannelColdCall, ChannelSalesCall:
		return InteractionCall
	case ChannelFBMessenger:
		return InteractionMessenger
	case ChannelLinkedInDM:
		return InteractionLinkedIn
	default:
		return InteractionSystem
	}
}

func (c Channel) String() string { return string(c) }

// InteractionType classifies an Interaction.
type InteractionType string

const (
	InteractionEmail     InteractionType = "email"
	InteractionSMS       InteractionType = "sms"
	InteractionCall      InteractionType = "call"
	InteractionWhatsApp  InteractionType = "whatsapp"
	InteractionMessenger InteractionType = "messenger"
	InteractionLinkedIn  InteractionType = "linkedin"
	InteractionSystem    InteractionType = "system"
)

// IsKnownInteractionType reports whether t is one of the enumerated types.
func IsKnownInteractionType(t string) bool {
	switch InteractionType(t) {
	case InteractionEmail, InteractionSMS, InteractionCall, InteractionWhatsApp,
		InteractionMessenger, InteractionLinkedIn, InteractionSystem:
		return true
	}
	return false
}
