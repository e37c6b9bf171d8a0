package teams

// InstallationUpdateView exposes an installationUpdate activity: the
// action ("add" or "remove") and the channel the installer selected.
type InstallationUpdateView struct {
	Activity *Activity

	Action            string
	SelectedChannelID string
}

// NewInstallationUpdateView builds the installation view from a decorated
// activity. Action comes from the extension map; the selected channel id
// from the Teams channelData settings.
func NewInstallationUpdateView(a *Activity) *InstallationUpdateView {
	v := &InstallationUpdateView{Activity: a}
	v.Action, _ = a.Base.Properties.GetString("action")
	if a.ChannelData != nil && a.ChannelData.Settings != nil && a.ChannelData.Settings.SelectedChannel != nil {
		v.SelectedChannelID = a.ChannelData.Settings.SelectedChannel.ID
	}
	return v
}

// IsAdd reports whether the app was installed.
func (v *InstallationUpdateView) IsAdd() bool { return v.Action == "add" }

// IsRemove reports whether the app was removed.
func (v *InstallationUpdateView) IsRemove() bool { return v.Action == "remove" }
