package bot

// User-facing reply texts, grouped by flow.
const (
	txtNotRegistered = "You are not registered. Ask your administrator for access."
	txtNoPermission  = "You do not have permission for this action."
	txtInternalError = "Something went wrong. Please try again later."

	txtTerms       = "Before we start, please accept the terms of service."
	txtTermsButton = "✅ Accept"
	txtAskName     = "Please introduce yourself: send your first and last name, for example: John Smith"
	txtBadName     = "Please send exactly two words, letters only: Firstname Lastname"
	txtWelcome     = "You're all set! Send me a message and I'll answer."

	txtNewChat = "Started a new conversation. Previous context is cleared."

	txtRegisterPrompt  = "Send the new user in two lines:\nrole\n@username"
	txtRegisterBadRole = "Unknown role. Available roles: admin, user."
	txtRegisterExists  = "This username is already registered."
	txtRegisterYes     = "✅ Yes"
	txtRegisterNo      = "❌ No"
	txtRegisterDone    = "User registered."
	txtRegisterCancel  = "Registration canceled."

	txtDeletePrompt   = "Send the @username to delete."
	txtDeleteNotFound = "No such user."
	txtDeleteDone     = "User deleted."

	txtNoWallet          = "Your company has no wallet yet. Contact support."
	txtNoModel           = "No AI model assigned. Use /model_info to pick one."
	txtInsufficientFunds = "Insufficient funds. Top up the balance with /pay."

	txtPayPrompt    = "Send the top-up amount in whole currency units."
	txtPayBadAmount = "Please send a positive number."

	txtImagePrompt    = "Describe the image you want me to generate."
	txtPhotoPrompt    = "Now send the photo to process."
	txtReplacePrompt  = "Describe what to search for and replace, then send the photo."
	txtRecolorPrompt  = "Describe what to recolor, then send the photo."
	txtPhotoUnhandled = "Send a command like /upscale first, then the photo."

	txtOperationSuperseded = "Previous operation canceled."
	txtUseButtons          = "Please use the buttons above to continue."

	txtVoiceFailed = "Could not transcribe the voice message."

	txtProviderBusy = "The AI service is overloaded right now. Try again in a minute."
	txtModerated    = "The request was rejected by the content filter."

	txtReplyPreserved = "The reply could not be delivered normally, here it is as a file."

	txtCloseButton = "❌ Close"
)
