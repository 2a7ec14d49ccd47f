package bot

// Admin panel buttons.
const (
	ButtonBroadcast = "Broadcast"
	ButtonUserCount = "User count"
	ButtonExport    = "Export users"
	ButtonExit      = "Exit"
)

var adminMenu = [][]string{
	{ButtonBroadcast, ButtonUserCount},
	{ButtonExport, ButtonExit},
}

// User-facing replies.
const (
	textWelcome    = "Send a TikTok video link."
	textProcessing = "Processing link..."
	textFetchFail  = "Could not fetch this video."
	textSendFail   = "Could not send this video."
	textInternal   = "Something went wrong, try again later."

	textNoAccess     = "You do not have access to the admin panel."
	textAdminPanel   = "Admin panel"
	textLeftPanel    = "You left the admin panel."
	textUserCount    = "Total users: %d"
	textExportCap    = "User list"
	textAskBroadcast = "Send the text or media to broadcast, or /cancel."
	textBroadcastEnd = "Broadcast finished.\nDelivered: %d\nFailed: %d"

	textOwnerOnlyAdd    = "Only the owner can add admins."
	textOwnerOnlyRemove = "Only the owner can remove admins."
	textOwnerOnly       = "Only the owner can manage admins."
	textAskAddUser      = "Send the username of the user to make admin (without @):"
	textAskRemoveUser   = "Send the username of the admin to remove (without @):"
	textUnknownUser     = "No user with that username is registered."
	textAdminAdded      = "@%s is now an admin."
	textAlreadyAdmin    = "@%s is already an admin."
	textAdminRemoved    = "@%s is no longer an admin."
	textNotAdmin        = "@%s is not an admin."

	textCanceled      = "Canceled."
	textNothingCancel = "Nothing to cancel."
)
