package command

// Replies shared by commands and the dispatcher.
const (
	TextWelcome        = "Hi! I answer questions from our knowledge base.\nTo get started, please share your contact."
	TextAlreadyReady   = "You are already registered. Ask your question:"
	TextRegistered     = "Thank you! Registration complete, you can ask your questions now."
	TextNeedContact    = "Please share your contact first."
	TextInvalidPhone   = "The phone number must look like +71234567890 (a plus and 11 digits)."
	TextRetryLater     = "Something went wrong. Please try again later."
	TextAskQuestion    = "Type your question and I will look for an answer in the knowledge base."
	TextForwarded      = "No answer found. Your question has been passed to an administrator."
	TextTicketCreated  = "No answer found. We opened request #%s, our team will contact you."
	TextEscalateFailed = "No answer found, and we could not forward your question right now. Please try again later."
	TextSlowDown       = "You are sending messages too fast. Please wait a moment."
	TextAdminOnly      = "This command is available to administrators only."
)
