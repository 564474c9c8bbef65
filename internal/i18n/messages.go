// ABOUTME: Message keys and their ru/uz/en texts
// ABOUTME: Every key must carry all three locales with matching format verbs

package i18n

// Key names one catalogue entry.
type Key string

// Dialogue texts.
const (
	MsgGenericError     Key = "generic_error"
	MsgBlocked          Key = "blocked"
	MsgNotRegistered    Key = "not_registered"
	MsgWelcomeBack      Key = "welcome_back"
	MsgWelcomeNew       Key = "welcome_new"
	MsgMenu             Key = "menu"
	MsgMenuUnavailable  Key = "menu_unavailable"
	MsgContactThanks    Key = "contact_thanks"
	MsgContactNotOwn    Key = "contact_not_own"
	MsgNiceToMeet       Key = "nice_to_meet"
	MsgNameInvalid      Key = "name_invalid"
	MsgOutOfZone        Key = "out_of_zone"
	MsgClosed           Key = "closed"
	MsgDeliveryOK       Key = "delivery_ok"
	MsgRegistered       Key = "registered"
	MsgAskLocation      Key = "ask_location"
	MsgNoOrders         Key = "no_orders"
	MsgOrdersHeader     Key = "orders_header"
	MsgOrderLine        Key = "order_line"
	MsgFeedbackPrompt   Key = "feedback_prompt"
	MsgFeedbackChosen   Key = "feedback_chosen"
	MsgFeedbackThanks   Key = "feedback_thanks"
	MsgCancelled        Key = "cancelled"
	MsgExpired          Key = "expired"
	MsgChooseLanguage   Key = "choose_language"
	MsgLanguageSet      Key = "language_set"
	MsgProfile          Key = "profile"
	MsgAskNewName       Key = "ask_new_name"
	MsgAskNewPhone      Key = "ask_new_phone"
	MsgNameUpdated      Key = "name_updated"
	MsgPhoneUpdated     Key = "phone_updated"
	MsgPhoneInvalid     Key = "phone_invalid"
	MsgResetConfirm     Key = "reset_confirm"
	MsgResetWait        Key = "reset_wait"
	MsgResetDone        Key = "reset_done"
	MsgHelp             Key = "help"
	MsgUseButtons       Key = "use_buttons"
	MsgNotSpecified     Key = "not_specified"
	FeedbackComplaint   Key = "feedback_type_complaint"
	FeedbackSuggestion  Key = "feedback_type_suggestion"
	FeedbackQuestion    Key = "feedback_type_question"
	FeedbackOther       Key = "feedback_type_other"
	BtnShareContact     Key = "btn_share_contact"
	BtnShareLocation    Key = "btn_share_location"
	BtnOpenMenu         Key = "btn_open_menu"
	BtnMyOrders         Key = "btn_my_orders"
	BtnFeedback         Key = "btn_feedback"
	BtnNewOrder         Key = "btn_new_order"
	BtnCancel           Key = "btn_cancel"
	BtnComplaint        Key = "btn_complaint"
	BtnSuggestion       Key = "btn_suggestion"
	BtnQuestion         Key = "btn_question"
	BtnOther            Key = "btn_other"
	BtnEditName         Key = "btn_edit_name"
	BtnEditPhone        Key = "btn_edit_phone"
	BtnResetConfirm     Key = "btn_reset_confirm"
	BtnCheckDelivery    Key = "btn_check_delivery"
	BtnChangeLanguage   Key = "btn_change_language"
	CurrencyUnit        Key = "currency_unit"
	OperatorDefaultName Key = "operator_default_name"
)

// Order texts.
const (
	StatusNew              Key = "status_new"
	StatusPreparing        Key = "status_preparing"
	StatusDelivering       Key = "status_delivering"
	StatusDelivered        Key = "status_delivered"
	StatusCancelled        Key = "status_cancelled"
	NoticeNew              Key = "notice_new"
	NoticePreparing        Key = "notice_preparing"
	NoticeDelivering       Key = "notice_delivering"
	NoticeDelivered        Key = "notice_delivered"
	NoticeCancelled        Key = "notice_cancelled"
	MsgCustomerStatus      Key = "customer_status"
	MsgCustomerCancelled   Key = "customer_cancelled"
	MsgAnnounceHeader      Key = "announce_header"
	MsgAnnounceCustomer    Key = "announce_customer"
	MsgAnnouncePhone       Key = "announce_phone"
	MsgAnnounceAddress     Key = "announce_address"
	MsgAnnounceTotal       Key = "announce_total"
	MsgAnnounceItems       Key = "announce_items"
	MsgAnnounceComment     Key = "announce_comment"
	MsgAnnounceStatus      Key = "announce_status"
	MsgAnnounceProcessedBy Key = "announce_processed_by"
	MsgAnnounceReason      Key = "announce_reason"
	MsgOpenMap             Key = "open_map"
	MsgAskRejectReason     Key = "ask_reject_reason"
	MsgReasonEmpty         Key = "reason_empty"
	MsgOrderCancelledOp    Key = "order_cancelled_operator"
	BtnConfirmOrder        Key = "btn_confirm_order"
	BtnDispatchOrder       Key = "btn_dispatch_order"
	BtnCompleteOrder       Key = "btn_complete_order"
	BtnCancelOrder         Key = "btn_cancel_order"
	AckApplied             Key = "ack_applied"
	AckAlreadyApplied      Key = "ack_already_applied"
	AckInvalid             Key = "ack_invalid"
	AckNotFound            Key = "ack_not_found"
)

type entry struct {
	key        Key
	ru, uz, en string
}

var entries = []entry{
	{MsgGenericError,
		"❌ Произошла ошибка. Попробуйте позже.",
		"❌ Xatolik yuz berdi. Keyinroq urinib ko'ring.",
		"❌ Something went wrong. Please try again later."},
	{MsgBlocked,
		"🚫 <b>Ваш аккаунт заблокирован</b>\n\nДля связи с администратором обратитесь: @%s",
		"🚫 <b>Hisobingiz bloklangan</b>\n\nAdministrator bilan bog'lanish: @%s",
		"🚫 <b>Your account is blocked</b>\n\nContact the administrator: @%s"},
	{MsgNotRegistered,
		"❌ Вы не зарегистрированы. Нажмите /start",
		"❌ Siz ro'yxatdan o'tmagansiz. /start ni bosing",
		"❌ You are not registered. Press /start"},
	{MsgWelcomeBack,
		"👋 С возвращением, %s!\n\n🏪 Ресторан: <b>%s</b>",
		"👋 Qaytganingiz bilan, %s!\n\n🏪 Restoran: <b>%s</b>",
		"👋 Welcome back, %s!\n\n🏪 Restaurant: <b>%s</b>"},
	{MsgWelcomeNew,
		"👋 Добро пожаловать в <b>%s</b>!\n\n📱 Для регистрации, пожалуйста, поделитесь своим номером телефона:",
		"👋 <b>%s</b> ga xush kelibsiz!\n\n📱 Ro'yxatdan o'tish uchun telefon raqamingizni yuboring:",
		"👋 Welcome to <b>%s</b>!\n\n📱 To register, please share your phone number:"},
	{MsgMenu,
		"🍽️ <b>%s</b>\n\nНажмите кнопку ниже, чтобы открыть меню:",
		"🍽️ <b>%s</b>\n\nMenyuni ochish uchun quyidagi tugmani bosing:",
		"🍽️ <b>%s</b>\n\nTap the button below to open the menu:"},
	{MsgMenuUnavailable,
		"⚠️ Меню временно недоступно. Мы уже занимаемся этим.",
		"⚠️ Menyu vaqtincha mavjud emas. Bu ustida ishlayapmiz.",
		"⚠️ The menu is temporarily unavailable. We are working on it."},
	{MsgContactThanks,
		"✅ Спасибо!\n\n👤 Теперь введите ваше имя:",
		"✅ Rahmat!\n\n👤 Endi ismingizni kiriting:",
		"✅ Thank you!\n\n👤 Now enter your name:"},
	{MsgContactNotOwn,
		"📱 Пожалуйста, поделитесь своим собственным контактом.",
		"📱 Iltimos, o'zingizning kontaktingizni yuboring.",
		"📱 Please share your own contact."},
	{MsgNiceToMeet,
		"👋 Приятно познакомиться, %s!\n\n📍 Теперь поделитесь вашей геолокацией:",
		"👋 Tanishganimdan xursandman, %s!\n\n📍 Endi joylashuvingizni yuboring:",
		"👋 Nice to meet you, %s!\n\n📍 Now share your location:"},
	{MsgNameInvalid,
		"✏️ Имя должно содержать от 1 до %d символов. Попробуйте ещё раз:",
		"✏️ Ism 1 dan %d gacha belgidan iborat bo'lishi kerak. Qayta urinib ko'ring:",
		"✏️ The name must be 1 to %d characters long. Try again:"},
	{MsgOutOfZone,
		"😔 К сожалению, ваш адрес находится за пределами зоны доставки ресторана <b>%s</b>.",
		"😔 Afsuski, manzilingiz <b>%s</b> restoranining yetkazib berish hududidan tashqarida.",
		"😔 Sorry, your address is outside the delivery zone of <b>%s</b>."},
	{MsgClosed,
		"😔 Извините, ресторан <b>%s</b> работает с %s до %s.\n\nПопробуйте позже!",
		"😔 Kechirasiz, <b>%s</b> restorani %s dan %s gacha ishlaydi.\n\nKeyinroq urinib ko'ring!",
		"😔 Sorry, <b>%s</b> is open from %s to %s.\n\nPlease try again later!"},
	{MsgDeliveryOK,
		"✅ Отлично! Доставка доступна!\n\n🏪 Ресторан: <b>%s</b>",
		"✅ Ajoyib! Yetkazib berish mavjud!\n\n🏪 Restoran: <b>%s</b>",
		"✅ Great! Delivery is available!\n\n🏪 Restaurant: <b>%s</b>"},
	{MsgRegistered,
		"✅ Регистрация успешна!\n\n🏪 Ресторан: <b>%s</b>\n📍 Доставка по вашему адресу доступна!",
		"✅ Ro'yxatdan o'tish muvaffaqiyatli!\n\n🏪 Restoran: <b>%s</b>\n📍 Manzilingizga yetkazib berish mavjud!",
		"✅ Registration complete!\n\n🏪 Restaurant: <b>%s</b>\n📍 Delivery to your address is available!"},
	{MsgAskLocation,
		"📍 Поделитесь геолокацией для проверки доставки:",
		"📍 Yetkazib berishni tekshirish uchun joylashuvingizni yuboring:",
		"📍 Share your location to check delivery:"},
	{MsgNoOrders,
		"📦 У вас пока нет заказов.",
		"📦 Sizda hali buyurtmalar yo'q.",
		"📦 You have no orders yet."},
	{MsgOrdersHeader,
		"📦 <b>Ваши заказы:</b>",
		"📦 <b>Buyurtmalaringiz:</b>",
		"📦 <b>Your orders:</b>"},
	{MsgOrderLine,
		"%s #%s — %s (%s)",
		"%s #%s — %s (%s)",
		"%s #%s — %s (%s)"},
	{MsgFeedbackPrompt,
		"📬 <b>Жалобы и предложения</b>\n\nВыберите тип обращения:",
		"📬 <b>Shikoyat va takliflar</b>\n\nMurojaat turini tanlang:",
		"📬 <b>Complaints and suggestions</b>\n\nChoose the type of your message:"},
	{MsgFeedbackChosen,
		"📝 Тип: <b>%s</b>\n\nНапишите ваше сообщение:",
		"📝 Turi: <b>%s</b>\n\nXabaringizni yozing:",
		"📝 Type: <b>%s</b>\n\nWrite your message:"},
	{MsgFeedbackThanks,
		"✅ <b>Спасибо за ваше обращение!</b>\n\nМы получили ваше сообщение и рассмотрим его в ближайшее время.",
		"✅ <b>Murojaatingiz uchun rahmat!</b>\n\nXabaringizni oldik va tez orada ko'rib chiqamiz.",
		"✅ <b>Thank you for your message!</b>\n\nWe received it and will review it shortly."},
	{MsgCancelled,
		"❌ Отменено",
		"❌ Bekor qilindi",
		"❌ Cancelled"},
	{MsgExpired,
		"⌛ Это действие больше недоступно",
		"⌛ Bu amal endi mavjud emas",
		"⌛ This action is no longer available"},
	{MsgChooseLanguage,
		"🌐 Выберите язык:",
		"🌐 Tilni tanlang:",
		"🌐 Choose your language:"},
	{MsgLanguageSet,
		"✅ Язык изменён: %s",
		"✅ Til o'zgartirildi: %s",
		"✅ Language set: %s"},
	{MsgProfile,
		"👤 <b>Профиль</b>\n\nИмя: %s\nТелефон: %s\nЛогин: <code>%s</code>",
		"👤 <b>Profil</b>\n\nIsm: %s\nTelefon: %s\nLogin: <code>%s</code>",
		"👤 <b>Profile</b>\n\nName: %s\nPhone: %s\nLogin: <code>%s</code>"},
	{MsgAskNewName,
		"✏️ Введите новое имя:",
		"✏️ Yangi ismni kiriting:",
		"✏️ Enter your new name:"},
	{MsgAskNewPhone,
		"📱 Отправьте новый номер телефона или поделитесь контактом:",
		"📱 Yangi telefon raqamini yuboring yoki kontaktingizni ulashing:",
		"📱 Send your new phone number or share your contact:"},
	{MsgNameUpdated,
		"✅ Имя обновлено: %s",
		"✅ Ism yangilandi: %s",
		"✅ Name updated: %s"},
	{MsgPhoneUpdated,
		"✅ Телефон обновлён: %s",
		"✅ Telefon yangilandi: %s",
		"✅ Phone updated: %s"},
	{MsgPhoneInvalid,
		"⚠️ Неверный номер. Пример: +998901234567",
		"⚠️ Noto'g'ri raqam. Misol: +998901234567",
		"⚠️ Invalid number. Example: +998901234567"},
	{MsgResetConfirm,
		"🔐 Сбросить пароль для входа в веб-приложение? Старый пароль перестанет работать.",
		"🔐 Veb-ilovaga kirish parolini tiklaysizmi? Eski parol ishlamay qoladi.",
		"🔐 Reset your web app password? The old password will stop working."},
	{MsgResetWait,
		"⏳ Повторный сброс возможен через %d сек.",
		"⏳ Qayta tiklash %d soniyadan keyin mumkin.",
		"⏳ You can reset again in %d seconds."},
	{MsgResetDone,
		"🔐 Пароль сброшен.\n\nЛогин: <code>%s</code>\nВременный пароль: <code>%s</code>\n\nСмените его после входа.",
		"🔐 Parol tiklandi.\n\nLogin: <code>%s</code>\nVaqtinchalik parol: <code>%s</code>\n\nKirgandan keyin uni o'zgartiring.",
		"🔐 Password reset.\n\nLogin: <code>%s</code>\nTemporary password: <code>%s</code>\n\nChange it after signing in."},
	{MsgHelp,
		"ℹ️ <b>Команды</b>\n\n/start — начать\n/menu — открыть меню\n/orders — мои заказы\n/profile — профиль\n/language — язык\n/feedback — жалобы и предложения\n/reset — сбросить пароль\n/cancel — отменить текущее действие",
		"ℹ️ <b>Buyruqlar</b>\n\n/start — boshlash\n/menu — menyuni ochish\n/orders — buyurtmalarim\n/profile — profil\n/language — til\n/feedback — shikoyat va takliflar\n/reset — parolni tiklash\n/cancel — joriy amalni bekor qilish",
		"ℹ️ <b>Commands</b>\n\n/start — start\n/menu — open the menu\n/orders — my orders\n/profile — profile\n/language — language\n/feedback — complaints and suggestions\n/reset — reset password\n/cancel — cancel the current action"},
	{MsgUseButtons,
		"👇 Пожалуйста, используйте кнопки ниже.",
		"👇 Iltimos, quyidagi tugmalardan foydalaning.",
		"👇 Please use the buttons below."},
	{MsgNotSpecified,
		"Не указан",
		"Ko'rsatilmagan",
		"Not specified"},
	{FeedbackComplaint, "жалоба", "shikoyat", "complaint"},
	{FeedbackSuggestion, "предложение", "taklif", "suggestion"},
	{FeedbackQuestion, "вопрос", "savol", "question"},
	{FeedbackOther, "обращение", "murojaat", "message"},
	{BtnShareContact, "📱 Поделиться контактом", "📱 Kontaktni ulashish", "📱 Share contact"},
	{BtnShareLocation, "📍 Поделиться локацией", "📍 Joylashuvni ulashish", "📍 Share location"},
	{BtnOpenMenu, "🍽️ Открыть меню", "🍽️ Menyuni ochish", "🍽️ Open menu"},
	{BtnMyOrders, "📋 Мои заказы", "📋 Buyurtmalarim", "📋 My orders"},
	{BtnFeedback, "💬 Жалобы и предложения", "💬 Shikoyat va takliflar", "💬 Complaints and suggestions"},
	{BtnNewOrder, "🛒 Новый заказ", "🛒 Yangi buyurtma", "🛒 New order"},
	{BtnCancel, "❌ Отмена", "❌ Bekor qilish", "❌ Cancel"},
	{BtnComplaint, "😤 Жалоба", "😤 Shikoyat", "😤 Complaint"},
	{BtnSuggestion, "💡 Предложение", "💡 Taklif", "💡 Suggestion"},
	{BtnQuestion, "❓ Вопрос", "❓ Savol", "❓ Question"},
	{BtnOther, "📝 Другое", "📝 Boshqa", "📝 Other"},
	{BtnEditName, "✏️ Изменить имя", "✏️ Ismni o'zgartirish", "✏️ Change name"},
	{BtnEditPhone, "📱 Изменить телефон", "📱 Telefonni o'zgartirish", "📱 Change phone"},
	{BtnResetConfirm, "🔐 Да, сбросить", "🔐 Ha, tiklash", "🔐 Yes, reset"},
	{BtnCheckDelivery, "📍 Проверить доставку", "📍 Yetkazishni tekshirish", "📍 Check delivery"},
	{BtnChangeLanguage, "🌐 Язык", "🌐 Til", "🌐 Language"},
	{CurrencyUnit, "сум", "so'm", "UZS"},
	{OperatorDefaultName, "Оператор", "Operator", "Operator"},

	{StatusNew, "Новый", "Yangi", "New"},
	{StatusPreparing, "Готовится", "Tayyorlanmoqda", "Preparing"},
	{StatusDelivering, "Доставляется", "Yetkazilmoqda", "Delivering"},
	{StatusDelivered, "Доставлен", "Yetkazildi", "Delivered"},
	{StatusCancelled, "Отменен", "Bekor qilindi", "Cancelled"},
	{NoticeNew,
		"🆕 Ваш заказ принят и обрабатывается",
		"🆕 Buyurtmangiz qabul qilindi va ko'rib chiqilmoqda",
		"🆕 Your order has been received and is being processed"},
	{NoticePreparing,
		"👨‍🍳 Ваш заказ готовится",
		"👨‍🍳 Buyurtmangiz tayyorlanmoqda",
		"👨‍🍳 Your order is being prepared"},
	{NoticeDelivering,
		"🚚 Ваш заказ доставляется",
		"🚚 Buyurtmangiz yetkazilmoqda",
		"🚚 Your order is on its way"},
	{NoticeDelivered,
		"✅ Ваш заказ доставлен",
		"✅ Buyurtmangiz yetkazildi",
		"✅ Your order has been delivered"},
	{NoticeCancelled,
		"❌ Ваш заказ отменен",
		"❌ Buyurtmangiz bekor qilindi",
		"❌ Your order has been cancelled"},
	{MsgCustomerStatus,
		"%s\n\nЗаказ #%s\nСумма: %s\nСтатус: %s",
		"%s\n\nBuyurtma #%s\nSumma: %s\nHolat: %s",
		"%s\n\nOrder #%s\nTotal: %s\nStatus: %s"},
	{MsgCustomerCancelled,
		"❌ <b>Заказ #%s отменен</b>\n\nПричина: %s\n\nПриносим извинения за неудобства.",
		"❌ <b>Buyurtma #%s bekor qilindi</b>\n\nSabab: %s\n\nNoqulaylik uchun uzr so'raymiz.",
		"❌ <b>Order #%s was cancelled</b>\n\nReason: %s\n\nWe apologize for the inconvenience."},
	{MsgAnnounceHeader,
		"🛒 <b>Новый заказ #%s</b>",
		"🛒 <b>Yangi buyurtma #%s</b>",
		"🛒 <b>New order #%s</b>"},
	{MsgAnnounceCustomer, "👤 <b>Клиент:</b> %s", "👤 <b>Mijoz:</b> %s", "👤 <b>Customer:</b> %s"},
	{MsgAnnouncePhone, "📞 <b>Телефон:</b> %s", "📞 <b>Telefon:</b> %s", "📞 <b>Phone:</b> %s"},
	{MsgAnnounceAddress, "📍 <b>Адрес:</b> %s", "📍 <b>Manzil:</b> %s", "📍 <b>Address:</b> %s"},
	{MsgAnnounceTotal, "💰 <b>Сумма:</b> %s", "💰 <b>Summa:</b> %s", "💰 <b>Total:</b> %s"},
	{MsgAnnounceItems, "🛍️ <b>Состав заказа:</b>", "🛍️ <b>Buyurtma tarkibi:</b>", "🛍️ <b>Items:</b>"},
	{MsgAnnounceComment, "💬 <b>Комментарий:</b> %s", "💬 <b>Izoh:</b> %s", "💬 <b>Comment:</b> %s"},
	{MsgAnnounceStatus, "📌 <b>Статус:</b> %s", "📌 <b>Holat:</b> %s", "📌 <b>Status:</b> %s"},
	{MsgAnnounceProcessedBy, "👨‍💼 <b>Оператор:</b> %s", "👨‍💼 <b>Operator:</b> %s", "👨‍💼 <b>Operator:</b> %s"},
	{MsgAnnounceReason, "📝 <b>Причина:</b> %s", "📝 <b>Sabab:</b> %s", "📝 <b>Reason:</b> %s"},
	{MsgOpenMap, "Открыть карту", "Xaritani ochish", "Open map"},
	{MsgAskRejectReason,
		"📝 Укажите причину отмены заказа #%s:",
		"📝 #%s buyurtmani bekor qilish sababini yozing:",
		"📝 Enter the reason for cancelling order #%s:"},
	{MsgReasonEmpty,
		"📝 Причина не может быть пустой. Напишите её текстом:",
		"📝 Sabab bo'sh bo'lishi mumkin emas. Matn bilan yozing:",
		"📝 The reason cannot be empty. Please type it:"},
	{MsgOrderCancelledOp,
		"❌ <b>Заказ #%s отменен</b>\n\nПричина: %s\nОператор: %s",
		"❌ <b>Buyurtma #%s bekor qilindi</b>\n\nSabab: %s\nOperator: %s",
		"❌ <b>Order #%s cancelled</b>\n\nReason: %s\nOperator: %s"},
	{BtnConfirmOrder, "✅ Принять", "✅ Qabul qilish", "✅ Accept"},
	{BtnDispatchOrder, "🚚 Передать курьеру", "🚚 Kuryerga berish", "🚚 Hand to courier"},
	{BtnCompleteOrder, "📦 Доставлен", "📦 Yetkazildi", "📦 Delivered"},
	{BtnCancelOrder, "❌ Отменить", "❌ Bekor qilish", "❌ Cancel"},
	{AckApplied, "✅ Готово", "✅ Bajarildi", "✅ Done"},
	{AckAlreadyApplied,
		"ℹ️ Этот шаг уже выполнен",
		"ℹ️ Bu qadam allaqachon bajarilgan",
		"ℹ️ This step is already done"},
	{AckInvalid,
		"⚠️ Действие недоступно для текущего статуса",
		"⚠️ Joriy holat uchun amal mavjud emas",
		"⚠️ Not available for the current status"},
	{AckNotFound, "⚠️ Заказ не найден", "⚠️ Buyurtma topilmadi", "⚠️ Order not found"},
}
