package teams

import "github.com/soyeahso/botway/internal/schema"

// Channel describes one Teams channel inside a team.
type Channel struct {
	ID          string `json:"id,omitempty"`
	AADObjectID string `json:"aadObjectId,omitempty"`
	Type        string `json:"type,omitempty"`
	Name        string `json:"name,omitempty"`
}

// Team describes the team an activity belongs to.
type Team struct {
	ID         string `json:"id,omitempty"`
	AADGroupID string `json:"aadGroupId,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Tenant identifies the Azure AD tenant.
type Tenant struct {
	ID string `json:"id,omitempty"`
}

// Settings carries the channel selection made during app installation.
type Settings struct {
	SelectedChannel *Channel `json:"selectedChannel,omitempty"`
}

// ChannelData is the Teams projection of the generic channel payload.
type ChannelData struct {
	ClientActivityID string
	TeamsChannelID   string
	TeamsTeamID      string
	Channel          *Channel
	Team             *Team
	Tenant           *Tenant
	Settings         *Settings

	Base *schema.ChannelData
}

func decorateChannelData(base *schema.ChannelData) *ChannelData {
	if base == nil {
		return nil
	}
	cd := &ChannelData{Base: base}
	if base.ClientActivityID != nil {
		cd.ClientActivityID = *base.ClientActivityID
	}
	cd.TeamsChannelID, _ = base.Properties.GetString("teamsChannelId")
	cd.TeamsTeamID, _ = base.Properties.GetString("teamsTeamId")

	var ch Channel
	if base.Properties.GetObject("channel", &ch) {
		cd.Channel = &ch
	}
	var tm Team
	if base.Properties.GetObject("team", &tm) {
		cd.Team = &tm
	}
	var tn Tenant
	if base.Properties.GetObject("tenant", &tn) {
		cd.Tenant = &tn
	}
	var st Settings
	if base.Properties.GetObject("settings", &st) {
		cd.Settings = &st
	}
	return cd
}
