package language

import "fmt"

// Key identifies a localized reply.
type Key string

const (
	KeyRequestsRequireAuth        Key = "requests_require_auth"
	KeyTodosRequireAuth           Key = "todos_require_auth"
	KeyRequestCreationRequireAuth Key = "request_creation_require_auth"
	KeyTaskCreationRequireAuth    Key = "task_creation_require_auth"
	KeyAIError                    Key = "ai_error"
	KeyError                      Key = "error"
	KeyUnknownState               Key = "unknown_state"
	KeyGuestNotFound              Key = "guest_not_found"
	KeyGuestMultipleFound         Key = "guest_multiple_found"

	KeyAskResponsibleRequest Key = "ask_responsible_request"
	KeyAskResponsibleTask    Key = "ask_responsible_task"
	KeyResponsibleNotFound   Key = "responsible_not_found"
	KeyAskDescriptionRequest Key = "ask_description_request"
	KeyAskDescriptionTask    Key = "ask_description_task"
	KeyEmptyDescription      Key = "empty_description"
	KeyRequestCreated        Key = "request_created"
	KeyTaskCreated           Key = "task_created"

	KeyRequestsTitle Key = "requests_title"
	KeyRequestsNone  Key = "requests_none"
	KeyTodosTitle    Key = "todos_title"
	KeyTodosNone     Key = "todos_none"

	KeyGuestAskFirstName      Key = "guest_ask_first_name"
	KeyGuestInvalidFirstName  Key = "guest_invalid_first_name"
	KeyGuestAskLastName       Key = "guest_ask_last_name"
	KeyGuestInvalidLastName   Key = "guest_invalid_last_name"
	KeyGuestAskNationality    Key = "guest_ask_nationality"
	KeyGuestInvalidCountry    Key = "guest_invalid_country"
	KeyGuestAskBirthdate      Key = "guest_ask_birthdate"
	KeyGuestCandidatesTitle   Key = "guest_candidates_title"
	KeyGuestManyFoundTitle    Key = "guest_many_found_title"
	KeyGuestCandidateLine     Key = "guest_candidate_line"
	KeyGuestCandidatesContact Key = "guest_candidates_contact"

	KeyStatusGreeting       Key = "status_greeting"
	KeyStatusPaymentPending Key = "status_payment_pending"
	KeyStatusCheckInPending Key = "status_checkin_pending"
	KeyStatusCode           Key = "status_code"
	KeyStatusNoCode         Key = "status_no_code"
	KeyStatusBothPending    Key = "status_both_pending"
	KeyStatusSeeYou         Key = "status_see_you"
	KeyPincode              Key = "pincode"
	KeyNoPincode            Key = "no_pincode"

	KeyBookingCreated     Key = "booking_created"
	KeyBookingPaymentLink Key = "booking_payment_link"
)

var catalog = map[Key]map[Code]string{
	KeyRequestsRequireAuth: {
		Spanish: "Debes estar registrado para ver tus requests. Por favor, agrega tu número de teléfono a tu perfil.",
		German:  "Du musst registriert sein, um deine Requests zu sehen. Bitte füge deine Telefonnummer zu deinem Profil hinzu.",
		English: "You must be registered to see your requests. Please add your phone number to your profile.",
	},
	KeyTodosRequireAuth: {
		Spanish: "Debes estar registrado para ver tus to-dos. Por favor, agrega tu número de teléfono a tu perfil.",
		German:  "Du musst registriert sein, um deine To-Dos zu sehen. Bitte füge deine Telefonnummer zu deinem Profil hinzu.",
		English: "You must be registered to see your to-dos. Please add your phone number to your profile.",
	},
	KeyRequestCreationRequireAuth: {
		Spanish: "Debes estar registrado para crear requests. Por favor, agrega tu número de teléfono a tu perfil.",
		German:  "Du musst registriert sein, um Requests zu erstellen. Bitte füge deine Telefonnummer zu deinem Profil hinzu.",
		English: "You must be registered to create requests. Please add your phone number to your profile.",
	},
	KeyTaskCreationRequireAuth: {
		Spanish: "Debes estar registrado para crear to-dos. Por favor, agrega tu número de teléfono a tu perfil.",
		German:  "Du musst registriert sein, um To-Dos zu erstellen. Bitte füge deine Telefonnummer zu deinem Profil hinzu.",
		English: "You must be registered to create to-dos. Please add your phone number to your profile.",
	},
	KeyAIError: {
		Spanish: "Lo siento, hubo un error al procesar tu mensaje. Por favor, intenta de nuevo.",
		German:  "Entschuldigung, es gab einen Fehler bei der Verarbeitung deiner Nachricht. Bitte versuche es erneut.",
		English: "Sorry, there was an error processing your message. Please try again.",
	},
	KeyError: {
		Spanish: "Lo siento, ocurrió un error. Por favor, intenta de nuevo más tarde.",
		German:  "Entschuldigung, ein Fehler ist aufgetreten. Bitte versuche es später erneut.",
		English: "Sorry, an error occurred. Please try again later.",
	},
	KeyUnknownState: {
		Spanish: "Estado desconocido. Por favor, intenta de nuevo.",
		German:  "Unbekannter Status. Bitte versuche es erneut.",
		English: "Unknown state. Please try again.",
	},
	KeyGuestNotFound: {
		Spanish: "No se encontró ninguna reservación. Por favor, verifica tus datos o contacta con el personal.",
		German:  "Keine Reservierung gefunden. Bitte überprüfe deine Daten oder kontaktiere das Personal.",
		English: "No reservation found. Please verify your data or contact staff.",
	},
	KeyGuestMultipleFound: {
		Spanish: "Se encontraron varias reservaciones. Por favor, proporciona más información.",
		German:  "Mehrere Reservierungen gefunden. Bitte gib weitere Informationen an.",
		English: "Multiple reservations found. Please provide more information.",
	},
	KeyAskResponsibleRequest: {
		Spanish: "Para quién es este request? (Escribe el nombre o ID del usuario)",
		German:  "Für wen ist dieser Request? (Schreibe den Namen oder die ID des Benutzers)",
		English: "For whom is this request? (Write the name or ID of the user)",
	},
	KeyAskResponsibleTask: {
		Spanish: "Para quién es este to-do? (Escribe el nombre o ID del usuario)",
		German:  "Für wen ist dieser To-Do? (Schreibe den Namen oder die ID des Benutzers)",
		English: "For whom is this to-do? (Write the name or ID of the user)",
	},
	KeyResponsibleNotFound: {
		Spanish: "Usuario no encontrado. Por favor, escribe el nombre completo o ID del usuario.",
		German:  "Benutzer nicht gefunden. Bitte schreibe den vollständigen Namen oder die ID des Benutzers.",
		English: "User not found. Please write the full name or ID of the user.",
	},
	KeyAskDescriptionRequest: {
		Spanish: "Usuario encontrado: %s\n\n¿Qué quieres solicitar? (Escribe la descripción o envía una imagen)",
		German:  "Benutzer gefunden: %s\n\nWas möchtest du anfragen? (Schreibe die Beschreibung oder sende ein Bild)",
		English: "User found: %s\n\nWhat do you want to request? (Write the description or send an image)",
	},
	KeyAskDescriptionTask: {
		Spanish: "Usuario encontrado: %s\n\n¿Qué to-do quieres crear? (Escribe la descripción)",
		German:  "Benutzer gefunden: %s\n\nWelchen To-Do möchtest du erstellen? (Schreibe die Beschreibung)",
		English: "User found: %s\n\nWhat to-do do you want to create? (Write the description)",
	},
	KeyEmptyDescription: {
		Spanish: "Por favor, escribe una descripción.",
		German:  "Bitte schreibe eine Beschreibung.",
		English: "Please write a description.",
	},
	KeyRequestCreated: {
		Spanish: "✅ Request creado exitosamente!\n\nID: %d\nTítulo: %s\nEstado: Pendiente de aprobación",
		German:  "✅ Request erfolgreich erstellt!\n\nID: %d\nTitel: %s\nStatus: Ausstehend",
		English: "✅ Request created successfully!\n\nID: %d\nTitle: %s\nStatus: Pending approval",
	},
	KeyTaskCreated: {
		Spanish: "✅ To-Do creado exitosamente!\n\nID: %d\nTítulo: %s\nEstado: Abierto",
		German:  "✅ To-Do erfolgreich erstellt!\n\nID: %d\nTitel: %s\nStatus: Offen",
		English: "✅ To-do created successfully!\n\nID: %d\nTitle: %s\nStatus: Open",
	},
	KeyRequestsTitle: {Spanish: "📋 Tus Requests:", German: "📋 Deine Requests:", English: "📋 Your Requests:"},
	KeyRequestsNone:  {Spanish: "No tienes requests.", German: "Du hast keine Requests.", English: "You have no requests."},
	KeyTodosTitle:    {Spanish: "✅ Tus To-Dos:", German: "✅ Deine To-Dos:", English: "✅ Your To-Dos:"},
	KeyTodosNone:     {Spanish: "No tienes to-dos.", German: "Du hast keine To-Dos.", English: "You have no to-dos."},
	KeyGuestAskFirstName: {
		Spanish: "No encontré tu reservación con tu número de teléfono. Por favor, proporciona los siguientes datos:\n\n¿Cuál es tu nombre?",
		German:  "Ich habe deine Reservierung mit deiner Telefonnummer nicht gefunden. Bitte gib die folgenden Daten an:\n\nWie lautet dein Vorname?",
		English: "I could not find your reservation with your phone number. Please provide the following information:\n\nWhat is your first name?",
	},
	KeyGuestInvalidFirstName: {
		Spanish: "Por favor, proporciona un nombre válido.",
		German:  "Bitte gib einen gültigen Namen an.",
		English: "Please provide a valid name.",
	},
	KeyGuestAskLastName: {
		Spanish: "Gracias, %s. ¿Cuál es tu apellido?",
		German:  "Danke, %s. Wie lautet dein Nachname?",
		English: "Thank you, %s. What is your last name?",
	},
	KeyGuestInvalidLastName: {
		Spanish: "Por favor, proporciona un apellido válido.",
		German:  "Bitte gib einen gültigen Nachnamen an.",
		English: "Please provide a valid last name.",
	},
	KeyGuestAskNationality: {
		Spanish: "Gracias. ¿De qué país eres?",
		German:  "Danke. Aus welchem Land kommst du?",
		English: "Thank you. What country are you from?",
	},
	KeyGuestInvalidCountry: {
		Spanish: "Por favor, proporciona un país válido.",
		German:  "Bitte gib ein gültiges Land an.",
		English: "Please provide a valid country.",
	},
	KeyGuestAskBirthdate: {
		Spanish: `Se encontraron varias reservaciones. Por favor, proporciona tu fecha de nacimiento (DD.MM.YYYY) o escribe "saltar" para ver todas.`,
		German:  `Mehrere Reservierungen gefunden. Bitte gib dein Geburtsdatum an (TT.MM.JJJJ) oder schreibe "überspringen" um alle zu sehen.`,
		English: `Multiple reservations found. Please provide your birth date (DD.MM.YYYY) or type "skip" to see all.`,
	},
	KeyGuestCandidatesTitle: {
		Spanish: "Se encontraron las siguientes reservaciones:",
		German:  "Folgende Reservierungen wurden gefunden:",
		English: "The following reservations were found:",
	},
	KeyGuestManyFoundTitle: {
		Spanish: "Se encontraron varias reservaciones:",
		German:  "Mehrere Reservierungen gefunden:",
		English: "Multiple reservations found:",
	},
	KeyGuestCandidateLine: {
		Spanish: "%d. Check-in: %s, Check-out: %s",
		German:  "%d. Check-in: %s, Check-out: %s",
		English: "%d. Check-in: %s, Check-out: %s",
	},
	KeyGuestCandidatesContact: {
		Spanish: "Por favor, contacta con el personal para más información.",
		German:  "Bitte kontaktiere das Personal für weitere Informationen.",
		English: "Please contact the staff for more information.",
	},
	KeyStatusGreeting:       {Spanish: "Hola %s!", German: "Hallo %s!", English: "Hello %s!"},
	KeyStatusPaymentPending: {Spanish: "Por favor, realiza el pago:", German: "Bitte zahle:", English: "Please make the payment:"},
	KeyStatusCheckInPending: {Spanish: "Realiza el check-in en línea:", German: "Führe den Check-in online durch:", English: "Complete the online check-in:"},
	KeyStatusCode:           {Spanish: "Tu código de acceso:", German: "Dein Zugangscode:", English: "Your access code:"},
	KeyStatusNoCode: {
		Spanish: "No hay código disponible para esta reservación.",
		German:  "Kein Code für diese Reservierung verfügbar.",
		English: "No code available for this reservation.",
	},
	KeyStatusBothPending: {
		Spanish: "Por favor, completa el pago y el check-in antes de tu llegada.",
		German:  "Bitte schließe Zahlung und Check-in vor deiner Ankunft ab.",
		English: "Please complete payment and check-in before your arrival.",
	},
	KeyStatusSeeYou: {Spanish: "¡Te esperamos!", German: "Wir freuen uns auf dich!", English: "We look forward to seeing you!"},
	KeyPincode:      {Spanish: "Tu código PIN:", German: "Dein PIN-Code:", English: "Your PIN code:"},
	KeyNoPincode: {
		Spanish: "No hay código PIN disponible para esta reservación. Por favor, contacta con el personal.",
		German:  "Kein PIN-Code für diese Reservierung verfügbar. Bitte kontaktiere das Personal.",
		English: "No PIN code available for this reservation. Please contact the staff.",
	},
	KeyBookingCreated: {
		Spanish: "¡Reserva creada! Número de reserva: %d.",
		German:  "Reservierung erstellt! Reservierungsnummer: %d.",
		English: "Reservation created! Reservation number: %d.",
	},
	KeyBookingPaymentLink: {
		Spanish: "Puedes pagar aquí: %s",
		German:  "Hier kannst du bezahlen: %s",
		English: "You can pay here: %s",
	},
}

// Text renders key in lang, falling back to Spanish. Unknown keys render as
// "Error".
func Text(lang Code, key Key, args ...any) string {
	entry, ok := catalog[key]
	if !ok {
		return "Error"
	}
	tmpl, ok := entry[lang]
	if !ok {
		tmpl = entry[Default]
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

var requestStatusLabels = map[Code]map[string]string{
	Spanish: {"approval": "⏳ Pendiente", "approved": "✅ Aprobado", "to_improve": "🔧 Mejorar", "denied": "❌ Denegado"},
	German:  {"approval": "⏳ Ausstehend", "approved": "✅ Genehmigt", "to_improve": "🔧 Verbessern", "denied": "❌ Abgelehnt"},
	English: {"approval": "⏳ Pending", "approved": "✅ Approved", "to_improve": "🔧 To Improve", "denied": "❌ Denied"},
}

var taskStatusLabels = map[Code]map[string]string{
	Spanish: {"open": "📝 Abierto", "in_progress": "🔄 En Progreso", "improval": "🔧 Mejorar", "quality_control": "👀 Control Calidad", "done": "✅ Hecho"},
	German:  {"open": "📝 Offen", "in_progress": "🔄 In Bearbeitung", "improval": "🔧 Verbessern", "quality_control": "👀 Qualitätskontrolle", "done": "✅ Erledigt"},
	English: {"open": "📝 Open", "in_progress": "🔄 In Progress", "improval": "🔧 To Improve", "quality_control": "👀 Quality Control", "done": "✅ Done"},
}

// RequestStatus labels a request status; unknown statuses are returned as is.
func RequestStatus(lang Code, status string) string {
	return statusLabel(requestStatusLabels, lang, status)
}

// TaskStatus labels a task status; unknown statuses are returned as is.
func TaskStatus(lang Code, status string) string {
	return statusLabel(taskStatusLabels, lang, status)
}

func statusLabel(labels map[Code]map[string]string, lang Code, status string) string {
	m, ok := labels[lang]
	if !ok {
		m = labels[Default]
	}
	if l, ok := m[status]; ok {
		return l
	}
	return status
}
